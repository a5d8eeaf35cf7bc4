package mail

import (
	"fmt"
	"strings"
	"time"
)

// StampLayout is the sortable, filename-safe timestamp format used in
// message ids. Nanosecond precision keeps two sends from the same sender in
// the same second from colliding.
const StampLayout = "20060102T150405.000000000"

// ID is the identity of a message: a sortable timestamp plus sender, type
// and subject. Its filename encoding is the message's id everywhere.
type ID struct {
	Stamp   time.Time
	From    string
	Type    Type
	Subject string
}

// NewID builds a message id from send parameters. The sender and subject are
// sanitized into filename-safe tokens.
func NewID(stamp time.Time, from string, typ Type, subject string) ID {
	return ID{Stamp: stamp.UTC(), From: from, Type: typ, Subject: subject}
}

// Filename encodes the id as {timestamp}_{from}_{type}_{subject}. Tokens are
// sanitized so '_' only ever appears as the field separator, which keeps the
// encoding unambiguous.
func (id ID) Filename() string {
	return fmt.Sprintf("%s_%s_%s_%s",
		id.Stamp.UTC().Format(StampLayout),
		sanitizeToken(id.From, "unknown"),
		typeToken(id.Type),
		sanitizeToken(id.Subject, "no-subject"),
	)
}

// ParseFilename decodes a message filename back into its id parts. It
// returns ok=false for any file that is not shaped like a message id; such
// files are foreign-format and must never be field-split into a summary.
func ParseFilename(name string) (ID, bool) {
	parts := strings.SplitN(name, "_", 4)
	if len(parts) != 4 {
		return ID{}, false
	}
	stamp, err := time.Parse(StampLayout, parts[0])
	if err != nil {
		return ID{}, false
	}
	typ, ok := parseTypeToken(parts[2])
	if !ok {
		return ID{}, false
	}
	if parts[1] == "" || parts[3] == "" {
		return ID{}, false
	}
	return ID{Stamp: stamp, From: parts[1], Type: typ, Subject: parts[3]}, true
}

// typeToken encodes a message type for use inside a filename. The only
// adjustment is '_' -> '-' (status_update) so the separator stays unique.
func typeToken(t Type) string {
	return strings.ReplaceAll(string(t), "_", "-")
}

func parseTypeToken(token string) (Type, bool) {
	for _, t := range Types() {
		if typeToken(t) == token {
			return t, true
		}
	}
	return "", false
}

const maxTokenLen = 40

// sanitizeToken lowercases s and maps every run of characters outside
// [a-z0-9-] to a single '-'. Empty results fall back to the given default.
func sanitizeToken(s, fallback string) string {
	var b strings.Builder
	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxTokenLen {
		out = strings.TrimRight(out[:maxTokenLen], "-")
	}
	if out == "" {
		return fallback
	}
	return out
}
