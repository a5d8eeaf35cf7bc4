package contractfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/guild/internal/ports/secondary"
)

// A contract record is one text file: a header block, a [fields] section
// preserving key order, and an append-only [log] section with one line per
// status transition.

const timestampLayout = time.RFC3339

// encodeRecord renders a contract record into its on-disk form.
func encodeRecord(rec *secondary.ContractRecord) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", rec.ID)
	fmt.Fprintf(&b, "FROM: %s\n", rec.From)
	fmt.Fprintf(&b, "TO: %s\n", rec.To)
	fmt.Fprintf(&b, "STATUS: %s\n", rec.Status)
	fmt.Fprintf(&b, "CREATED: %s\n", rec.CreatedAt.UTC().Format(timestampLayout))
	if rec.ParentID != "" {
		fmt.Fprintf(&b, "PARENT: %s\n", rec.ParentID)
	}
	fmt.Fprintf(&b, "VERSION: %d\n", rec.Version)

	b.WriteString("\n[fields]\n")
	for _, f := range rec.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Key, strings.ReplaceAll(f.Value, "\n", " "))
	}

	b.WriteString("\n[log]\n")
	for _, e := range rec.Log {
		note := strings.ReplaceAll(e.Note, "\n", " ")
		fmt.Fprintf(&b, "%s | %s -> %s | %s\n",
			e.Timestamp.UTC().Format(timestampLayout), e.FromStatus, e.ToStatus, note)
	}
	return []byte(b.String())
}

// decodeRecord parses the on-disk form back into a record.
func decodeRecord(data []byte) (*secondary.ContractRecord, error) {
	rec := &secondary.ContractRecord{}
	section := "header"

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == "":
			continue
		case line == "[fields]":
			section = "fields"
			continue
		case line == "[log]":
			section = "log"
			continue
		}

		switch section {
		case "header":
			key, value, ok := strings.Cut(line, ": ")
			if !ok {
				return nil, fmt.Errorf("malformed header line %q", line)
			}
			switch key {
			case "ID":
				rec.ID = value
			case "FROM":
				rec.From = value
			case "TO":
				rec.To = value
			case "STATUS":
				rec.Status = value
			case "PARENT":
				rec.ParentID = value
			case "CREATED":
				ts, err := time.Parse(timestampLayout, value)
				if err != nil {
					return nil, fmt.Errorf("malformed CREATED %q: %w", value, err)
				}
				rec.CreatedAt = ts
			case "VERSION":
				v, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("malformed VERSION %q: %w", value, err)
				}
				rec.Version = v
			}
		case "fields":
			key, value, ok := strings.Cut(line, ": ")
			if !ok {
				key, value = strings.TrimSuffix(line, ":"), ""
			}
			rec.Fields = append(rec.Fields, secondary.Field{Key: key, Value: value})
		case "log":
			entry, err := decodeLogLine(line)
			if err != nil {
				return nil, err
			}
			rec.Log = append(rec.Log, entry)
		}
	}

	if rec.ID == "" || rec.Status == "" {
		return nil, fmt.Errorf("record missing ID or STATUS header")
	}
	return rec, nil
}

func decodeLogLine(line string) (secondary.ChangeLogEntry, error) {
	parts := strings.SplitN(line, " | ", 3)
	if len(parts) != 3 {
		return secondary.ChangeLogEntry{}, fmt.Errorf("malformed log line %q", line)
	}
	ts, err := time.Parse(timestampLayout, parts[0])
	if err != nil {
		return secondary.ChangeLogEntry{}, fmt.Errorf("malformed log timestamp %q: %w", parts[0], err)
	}
	from, to, ok := strings.Cut(parts[1], " -> ")
	if !ok {
		return secondary.ChangeLogEntry{}, fmt.Errorf("malformed log transition %q", parts[1])
	}
	return secondary.ChangeLogEntry{
		Timestamp:  ts,
		FromStatus: from,
		ToStatus:   to,
		Note:       parts[2],
	}, nil
}
