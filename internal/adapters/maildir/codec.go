package maildir

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/guild/internal/ports/secondary"
)

// Message files carry a fixed header block followed by a blank line and the
// body. The header is the authoritative, tagged representation of a message;
// a file whose header does not decode is foreign regardless of its filename.

const timestampLayout = time.RFC3339Nano

// encodeMessage renders a message record into its on-disk form.
func encodeMessage(rec *secondary.MessageRecord) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "FROM: %s\n", rec.Sender)
	fmt.Fprintf(&b, "TO: %s\n", rec.Recipient)
	fmt.Fprintf(&b, "TYPE: %s\n", rec.Type)
	fmt.Fprintf(&b, "PRIORITY: %s\n", rec.Priority)
	fmt.Fprintf(&b, "TIMESTAMP: %s\n", rec.Timestamp.UTC().Format(timestampLayout))
	fmt.Fprintf(&b, "SUBJECT: %s\n", rec.Subject)
	b.WriteString("\n")
	b.WriteString(rec.Body)
	return []byte(b.String())
}

// decodeMessage parses the on-disk form back into a record. Missing or
// malformed headers fail the decode; callers treat such files as foreign.
func decodeMessage(data []byte) (*secondary.MessageRecord, error) {
	head, body, _ := strings.Cut(string(data), "\n\n")

	rec := &secondary.MessageRecord{Body: body}
	seen := map[string]bool{}
	for _, line := range strings.Split(head, "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		seen[key] = true
		switch key {
		case "FROM":
			rec.Sender = value
		case "TO":
			rec.Recipient = value
		case "TYPE":
			rec.Type = value
		case "PRIORITY":
			rec.Priority = value
		case "SUBJECT":
			rec.Subject = value
		case "TIMESTAMP":
			ts, err := time.Parse(timestampLayout, value)
			if err != nil {
				return nil, fmt.Errorf("malformed timestamp %q: %w", value, err)
			}
			rec.Timestamp = ts
		}
	}

	for _, required := range []string{"FROM", "TO", "TYPE", "PRIORITY", "TIMESTAMP"} {
		if !seen[required] {
			return nil, fmt.Errorf("missing %s header", required)
		}
	}
	return rec, nil
}
