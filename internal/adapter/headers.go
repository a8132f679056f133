package adapter

import "strings"

// HeaderField is one header name with its (possibly multi-valued)
// values, preserving the order values were added.
type HeaderField struct {
	Name   string
	Values []string
}

// Headers is an insertion-ordered, case-insensitive header multimap
// (design notes §9: "model headers as a case-insensitive multimap").
type Headers []HeaderField

// Get returns the first value stored under name (case-insensitive), or
// ("", false) if absent.
func (h Headers) Get(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, f := range h {
		if strings.ToLower(f.Name) == lower && len(f.Values) > 0 {
			return f.Values[0], true
		}
	}
	return "", false
}

// Values returns all values stored under name (case-insensitive).
func (h Headers) Values(name string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, f := range h {
		if strings.ToLower(f.Name) == lower {
			out = append(out, f.Values...)
		}
	}
	return out
}

// Clone returns a deep copy safe for independent mutation.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for i, f := range h {
		out[i] = HeaderField{Name: f.Name, Values: append([]string(nil), f.Values...)}
	}
	return out
}

// Without returns a copy of h with all headers named in names removed
// (case-insensitive). Used when cloning baseline headers into a new spec
// (design notes §9: drop Content-Length/Transfer-Encoding/Host to avoid
// smuggling and stale lengths).
func (h Headers) Without(names ...string) Headers {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[strings.ToLower(n)] = true
	}
	out := make(Headers, 0, len(h))
	for _, f := range h {
		if drop[strings.ToLower(f.Name)] {
			continue
		}
		out = append(out, HeaderField{Name: f.Name, Values: append([]string(nil), f.Values...)})
	}
	return out
}

// WithSet returns a copy of h with name set to a single value, replacing
// any existing occurrence (case-insensitive) in place, or appending a new
// field if absent.
func (h Headers) WithSet(name, value string) Headers {
	lower := strings.ToLower(name)
	out := h.Clone()
	for i, f := range out {
		if strings.ToLower(f.Name) == lower {
			out[i] = HeaderField{Name: f.Name, Values: []string{value}}
			return out
		}
	}
	return append(out, HeaderField{Name: name, Values: []string{value}})
}

// add appends a new header field, even if name already exists
// (case-insensitive), rather than replacing or merging it. Used by
// ParseRaw's header-folding logic, which needs to append continuation
// lines to the *previous* header specifically rather than merge by name.
func (h Headers) add(name, value string) Headers {
	return append(h, HeaderField{Name: name, Values: []string{value}})
}
