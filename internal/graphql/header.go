package graphql

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ErrBadHeader is returned for auth inputs that are not a "Name: value" line.
var ErrBadHeader = errors.New("provided `auth` input was not a valid header in the format of `name: value`")

// Header is a single request header supplied by the caller, e.g.
// "Authorization: Bearer abc".
type Header struct {
	Name  string
	Value string
}

// ParseHeader splits line at the first colon. The name must be a valid HTTP
// token and the value must not contain control characters.
func ParseHeader(line string) (*Header, error) {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return nil, ErrBadHeader
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return nil, ErrBadHeader
	}
	return &Header{Name: name, Value: value}, nil
}

// Apply sets the header on h, replacing any previous value.
func (hd *Header) Apply(h http.Header) {
	h.Set(hd.Name, hd.Value)
}

// String renders the header with its value redacted so it can be logged.
func (hd *Header) String() string {
	return hd.Name + ": [redacted]"
}
