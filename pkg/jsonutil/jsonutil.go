// Package jsonutil wraps github.com/go-json-experiment/json for the HTTP and
// MCP surfaces. Request bodies are decoded strictly: unknown members and
// trailing data are errors.
package jsonutil

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrBodyTooLarge is returned by DecodeStrict when the input exceeds its cap.
var ErrBodyTooLarge = errors.New("jsonutil: body too large")

// Marshal returns the compact JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent returns v encoded with the given indent.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, jsontext.WithIndent(indent))
}

// Unmarshal parses data into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Valid reports whether data is a single valid JSON value.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// Write encodes v to w followed by a newline, like encoding/json.Encoder.
func Write(w io.Writer, v any) error {
	if err := json.MarshalWrite(w, v); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

// DecodeStrict reads at most max bytes from r into v, rejecting unknown
// object members. An empty body leaves v untouched and returns io.EOF.
func DecodeStrict(r io.Reader, max int64, v any) error {
	lr := &io.LimitedReader{R: r, N: max + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return err
	}
	if int64(len(data)) > max {
		return fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, max)
	}
	if isBlank(data) {
		return io.EOF
	}
	return json.Unmarshal(data, v, json.RejectUnknownMembers(true))
}

func isBlank(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
