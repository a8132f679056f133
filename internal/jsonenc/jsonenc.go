// Package jsonenc provides a configurable JSON encoding/decoding layer.
// It defaults to github.com/bytedance/sonic. Its only caller is
// internal/store, which encodes and decodes the header-multimap columns
// of stored requests and responses with it; the RPC envelopes and the
// findings sink do not go through this package. It can be swapped back
// to encoding/json by calling
// SetConfig(DefaultStdConfig()) if sonic's stricter number handling ever
// becomes a problem for a caller.
package jsonenc

import (
	stdjson "encoding/json"

	"github.com/bytedance/sonic"
)

// Config holds the JSON encoding/decoding functions Marshal and
// Unmarshal dispatch to.
type Config struct {
	Marshal   func(v any) ([]byte, error)
	Unmarshal func(data []byte, v any) error
}

// DefaultConfig returns the sonic-backed configuration.
func DefaultConfig() Config {
	return Config{
		Marshal:   sonic.Marshal,
		Unmarshal: sonic.Unmarshal,
	}
}

// DefaultStdConfig returns the encoding/json-backed configuration, kept
// available as an escape hatch.
func DefaultStdConfig() Config {
	return Config{
		Marshal:   stdjson.Marshal,
		Unmarshal: stdjson.Unmarshal,
	}
}

var config = DefaultConfig()

// SetConfig sets the package-global JSON configuration.
func SetConfig(c Config) { config = c }

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) { return config.Marshal(v) }

// Unmarshal parses JSON-encoded data into v.
func Unmarshal(data []byte, v any) error { return config.Unmarshal(data, v) }
