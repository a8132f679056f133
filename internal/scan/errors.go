package scan

// ErrorKind categorizes a scan-terminating error per spec.md §7's error
// taxonomy (Validation, Precondition, Transport, Sink). It exists so a
// host-facing layer (internal/rpc) can map errors to status codes
// without string-matching the message.
type ErrorKind string

const (
	KindValidation  ErrorKind = "Validation"
	KindPrecondition ErrorKind = "Precondition"
	KindTransport   ErrorKind = "Transport"
	KindSink        ErrorKind = "Sink"
)

// Error is a scan-terminating error carrying its taxonomy Kind and the
// exact, contractually observable message from spec.md §7.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func validationErr(msg string) error  { return &Error{Kind: KindValidation, Msg: msg} }
func preconditionErr(msg string) error { return &Error{Kind: KindPrecondition, Msg: msg} }
func transportErr(msg string) error    { return &Error{Kind: KindTransport, Msg: msg} }
