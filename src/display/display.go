// Package display renders the verbose send receipt with colored
// sections and MIME-aware body formatting.
package display

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/fatih/color"
	"github.com/fxamacker/cbor/v2"

	"github.com/sandrolain/iotsend/src/message"
)

const (
	CTJSON = "application/json"
	CTCBOR = "application/cbor"
	CTText = "text/plain"
)

// PrettyBodyByMIME pretty-prints JSON/CBOR bodies based on MIME, otherwise returns original body.
func PrettyBodyByMIME(mime string, body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	m := strings.ToLower(mime)
	switch {
	case strings.Contains(m, "json"):
		var obj any
		if err := json.Unmarshal(body, &obj); err == nil {
			f := colorjson.NewFormatter()
			f.Indent = 2
			if s, err := f.Marshal(obj); err == nil {
				return s
			}
		}
		return body
	case strings.Contains(m, "cbor"):
		var obj any
		if err := cbor.Unmarshal(body, &obj); err == nil {
			f := colorjson.NewFormatter()
			f.Indent = 2
			if s, err := f.Marshal(obj); err == nil {
				return s
			}
		}
		return body
	default:
		return body
	}
}

// GuessMIME tries to guess a content type from raw body.
// It detects JSON by leading '{' or '[' and CBOR by major-type heuristics
// on the first byte. Falls back to text/plain.
func GuessMIME(body []byte) string {
	if len(body) == 0 {
		return CTText
	}
	b := strings.TrimSpace(string(body))
	if strings.HasPrefix(b, "{") || strings.HasPrefix(b, "[") {
		return CTJSON
	}
	first := body[0]
	if (first&0xE0) == 0xA0 || (first&0xE0) == 0x80 || (first&0xE0) == 0x60 {
		return CTCBOR
	}
	return CTText
}

// KV represents a single key-value pair to print under a section.
type KV struct {
	Key   string
	Value string
}

// MessageSection groups related key-value pairs under a titled section.
type MessageSection struct {
	Title string
	Items []KV
}

var printCounter int = 0
var printCountMutex = sync.Mutex{}

func getNextPrintCount() int {
	printCountMutex.Lock()
	defer printCountMutex.Unlock()
	printCounter++
	return printCounter
}

// PrintColoredMessage prints a colored, consistently formatted message with sections and body.
// Title and section titles are highlighted; items are aligned as key: value; body is pretty-printed by MIME.
func PrintColoredMessage(title string, sections []MessageSection, body []byte, mime string) {
	black := color.New(color.FgBlack).Add(color.ResetUnderline).PrintfFunc()
	blue := color.New(color.FgHiBlue).Add(color.Underline).PrintfFunc()
	white := color.New(color.FgWhite).Add(color.ResetUnderline).PrintfFunc()

	count := getNextPrintCount()
	black("\n-------- Message %d --------\n", count)
	black(time.Now().Format(time.RFC3339) + "\n")
	if title != "" {
		blue("%s:\n", title)
	}

	for _, s := range sections {
		if s.Title != "" {
			blue("%s:\n", s.Title)
		}
		for _, kv := range s.Items {
			white("  %s: %s\n", kv.Key, kv.Value)
		}
	}

	blue("Body:\n")
	pretty := PrettyBodyByMIME(mime, body)
	white("%s\n\n", pretty)
}

// Receipt is the verbose summary of a delivered message.
type Receipt struct {
	Endpoint   string
	Properties []message.Property
	Body       []byte
}

// PrintReceipt renders the receipt after a successful send: endpoint
// type, the header properties that traveled with the message, and the
// payload body pretty-printed by guessed MIME.
func PrintReceipt(r Receipt) {
	sections := []MessageSection{
		{Title: "Endpoint", Items: []KV{{Key: "type", Value: r.Endpoint}}},
	}
	props := MessageSection{Title: "Properties"}
	for _, p := range r.Properties {
		props.Items = append(props.Items, KV{Key: p.Key, Value: p.Value})
	}
	sections = append(sections, props)
	PrintColoredMessage("Delivered", sections, r.Body, GuessMIME(r.Body))
}
