// Package message holds the outbound IOT message model: a block of
// key:value header lines terminated by a blank line, followed by the
// raw payload bytes.
package message

import (
	"fmt"
	"io"
	"strings"
)

const (
	// MaxMessageSize is the ingestion limit of the telemetry endpoint.
	// Payloads beyond this size are truncated by the client.
	MaxMessageSize = 256 * 1024

	// DefaultHeaders is the header block used when the caller provides none.
	DefaultHeaders = "source:iotsend\n\n"

	// HeaderSeparator is the character the CLI accepts between header
	// pairs in a single argument.
	HeaderSeparator = ";"
)

// Property is a single key:value pair from the header block.
type Property struct {
	Key   string
	Value string
}

// NormalizeHeaders rewrites the CLI header syntax into wire form: every
// HeaderSeparator becomes a newline. No other byte is altered.
func NormalizeHeaders(headers string) string {
	return strings.ReplaceAll(headers, HeaderSeparator, "\n")
}

// Message is one outbound message: the raw header text plus the payload
// bytes read from the source stream, capped at MaxMessageSize.
type Message struct {
	headers   string
	data      []byte
	truncated bool
}

// New reads the payload stream and builds a Message. At most
// MaxMessageSize payload bytes are kept; the remainder of the stream is
// left unread and the message is flagged as truncated.
func New(headers string, payload io.Reader) (*Message, error) {
	data, err := io.ReadAll(io.LimitReader(payload, MaxMessageSize))
	if err != nil {
		return nil, fmt.Errorf("error reading payload: %w", err)
	}
	truncated := false
	if len(data) == MaxMessageSize {
		var probe [1]byte
		if n, _ := payload.Read(probe[:]); n > 0 {
			truncated = true
		}
	}
	return &Message{
		headers:   headers,
		data:      data,
		truncated: truncated,
	}, nil
}

// Headers returns the raw header text as received, without the frame
// terminator applied.
func (m *Message) Headers() string {
	return m.headers
}

// Data returns the payload bytes.
func (m *Message) Data() []byte {
	return m.data
}

// Size returns the payload size in bytes.
func (m *Message) Size() int {
	return len(m.data)
}

// Truncated reports whether the payload stream exceeded MaxMessageSize.
func (m *Message) Truncated() bool {
	return m.truncated
}

// Properties parses the header block into ordered key:value pairs for
// transports with native metadata. A blank line terminates the block;
// lines without a separator or with an empty key are skipped.
func (m *Message) Properties() []Property {
	lines := strings.Split(m.headers, "\n")
	props := make([]Property, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" {
			continue
		}
		props = append(props, Property{Key: key, Value: value})
	}
	return props
}

// ResolveProperty returns the value of the named header property, or
// fallback when the key is empty or not present in the block.
func ResolveProperty(m *Message, key string, fallback string) string {
	if key == "" {
		return fallback
	}
	for _, p := range m.Properties() {
		if p.Key == key {
			return p.Value
		}
	}
	return fallback
}

// Framed returns the wire form consumed by block-oriented transports:
// the header text, terminated by a single blank line, followed by the
// payload bytes. Missing terminator newlines are appended; header bytes
// are never removed or rewritten.
func (m *Message) Framed() []byte {
	headers := m.headers
	switch {
	case strings.HasSuffix(headers, "\n\n"):
	case strings.HasSuffix(headers, "\n"):
		headers += "\n"
	default:
		headers += "\n\n"
	}
	framed := make([]byte, 0, len(headers)+len(m.data))
	framed = append(framed, headers...)
	framed = append(framed, m.data...)
	return framed
}
