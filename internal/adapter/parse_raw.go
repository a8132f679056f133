package adapter

import (
	"fmt"
	"strconv"
	"strings"
)

// RawRequest is the wire-format input to ParseRaw (spec.md §4.1, §6).
type RawRequest struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	IsTLS bool   `json:"isTls"`
	Raw   string `json:"raw"`
}

// ParseRaw parses a wire-format HTTP/1 request into a RequestSpec.
// \r\n is normalized to \n; the request line and header block are split
// from the body at the first blank line. TARGET in the request line is
// kept verbatim if it is already an absolute URL, otherwise it is
// resolved against scheme://host:port. Header folding (a continuation
// line starting with a space or tab) appends to the previous header's
// value, joined by a space. Content-Length and Transfer-Encoding headers
// are dropped, since the adapter recomputes them on send.
func ParseRaw(req RawRequest) (RequestSpec, error) {
	if strings.TrimSpace(req.Raw) == "" {
		return RequestSpec{}, fmt.Errorf("raw request is empty")
	}
	if strings.TrimSpace(req.Host) == "" {
		return RequestSpec{}, fmt.Errorf("host is required")
	}
	if req.Port < 1 || req.Port > 65535 {
		return RequestSpec{}, fmt.Errorf("port is invalid")
	}

	normalized := strings.ReplaceAll(req.Raw, "\r\n", "\n")

	headerSection, body, _ := splitBlankLine(normalized)
	if strings.TrimSpace(headerSection) == "" {
		return RequestSpec{}, fmt.Errorf("request is empty")
	}

	lines := strings.Split(headerSection, "\n")
	method, target, err := parseRequestLine(lines[0])
	if err != nil {
		return RequestSpec{}, err
	}

	headers := parseFoldedHeaders(lines[1:])
	headers = headers.Without("Content-Length", "Transfer-Encoding")

	url := resolveTarget(target, req.Host, req.Port, req.IsTLS)

	return RequestSpec{
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    []byte(body),
	}, nil
}

// splitBlankLine splits s at the first occurrence of "\n\n", returning
// the portion before (header section) and after (body). If no blank
// line is found, the whole input is the header section and the body is
// empty.
func splitBlankLine(s string) (header, body string, found bool) {
	idx := strings.Index(s, "\n\n")
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+2:], true
}

func parseRequestLine(line string) (method, target string, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", fmt.Errorf("invalid request line")
	}
	return fields[0], fields[1], nil
}

func parseFoldedHeaders(lines []string) Headers {
	var headers Headers
	for _, line := range lines {
		if line == "" {
			continue
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(headers) > 0 {
			last := &headers[len(headers)-1]
			if len(last.Values) > 0 {
				last.Values[len(last.Values)-1] = last.Values[len(last.Values)-1] + " " + strings.TrimSpace(line)
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers = headers.add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return headers
}

func resolveTarget(target, host string, port int, isTLS bool) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	scheme := "http"
	if isTLS {
		scheme = "https"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return fmt.Sprintf("%s://%s:%s%s", scheme, host, strconv.Itoa(port), target)
}
