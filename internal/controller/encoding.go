// internal/controller/encoding.go
package controller

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnknownEncoding is returned for an encoding label that cannot be resolved
var ErrUnknownEncoding = errors.New("unknown encoding")

// Codec converts between text and the bytes on the wire
type Codec struct {
	name   string
	enc    encoding.Encoding
	strict bool
}

// NewCodec resolves an encoding label such as ascii, latin-1, utf-8 or cp1252
func NewCodec(label string) (*Codec, error) {
	name := strings.ToLower(strings.TrimSpace(label))

	switch name {
	case "", "ascii", "us-ascii":
		// 7-bit text; decoding tolerates stray high bytes
		return &Codec{name: "ascii", enc: charmap.ISO8859_1, strict: true}, nil
	case "utf8", "utf-8":
		return &Codec{name: "utf-8", enc: unicode.UTF8}, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return &Codec{name: "latin-1", enc: charmap.ISO8859_1}, nil
	case "cp1252":
		name = "windows-1252"
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	if canonical, err := htmlindex.Name(enc); err == nil {
		name = canonical
	}
	if strings.HasPrefix(name, "utf-16") {
		return nil, fmt.Errorf("%w: %q is not byte oriented", ErrUnknownEncoding, label)
	}

	return &Codec{name: name, enc: enc}, nil
}

// Name returns the canonical encoding name
func (c *Codec) Name() string {
	return c.name
}

// Encode converts text to wire bytes
func (c *Codec) Encode(s string) ([]byte, error) {
	if c.strict {
		for i, r := range s {
			if r >= utf8.RuneSelf {
				return nil, fmt.Errorf("cannot encode %q at offset %d as %s", r, i, c.name)
			}
		}
	}

	b, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("cannot encode as %s: %w", c.name, err)
	}
	return b, nil
}

// Decode converts wire bytes to text
func (c *Codec) Decode(b []byte) (string, error) {
	s, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("cannot decode as %s: %w", c.name, err)
	}
	return string(s), nil
}

// MustEncode encodes text known to be representable, such as terminators
func (c *Codec) MustEncode(s string) []byte {
	b, err := c.Encode(s)
	if err != nil {
		panic(err)
	}
	return b
}
