package logging

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DetailKind tags the payload carried by a Detail.
type DetailKind uint8

const (
	DetailNone DetailKind = iota
	DetailText
	DetailBinary
	DetailError
	DetailFields
)

// Detail is optional extra information attached to a journal entry.
// Exactly one payload is meaningful, selected by Kind.
type Detail struct {
	kind   DetailKind
	text   string
	data   []byte
	err    error
	fields []slog.Attr
}

// None is the empty detail.
func None() Detail { return Detail{} }

// Text wraps a string detail.
func Text(s string) Detail { return Detail{kind: DetailText, text: s} }

// Binary wraps a byte payload. The slice is copied.
func Binary(b []byte) Detail {
	return Detail{kind: DetailBinary, data: append([]byte(nil), b...)}
}

// Err wraps an error detail. A nil error yields None.
func Err(err error) Detail {
	if err == nil {
		return None()
	}
	return Detail{kind: DetailError, err: err}
}

// Fields wraps structured key/value pairs, order preserved.
func Fields(attrs ...slog.Attr) Detail {
	if len(attrs) == 0 {
		return None()
	}
	return Detail{kind: DetailFields, fields: attrs}
}

// Kind reports which payload is set.
func (d Detail) Kind() DetailKind { return d.kind }

// Cause returns the wrapped error for DetailError, nil otherwise.
func (d Detail) Cause() error { return d.err }

// String renders the detail on one line.
func (d Detail) String() string {
	switch d.kind {
	case DetailText:
		return strconv.Quote(d.text)
	case DetailBinary:
		return fmt.Sprintf("binary(%d) %s", len(d.data), hex.EncodeToString(d.data))
	case DetailError:
		return "error: " + d.err.Error()
	case DetailFields:
		var b strings.Builder
		b.WriteByte('{')
		for i, a := range d.fields {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(a.Key)
			b.WriteByte('=')
			b.WriteString(strconv.Quote(a.Value.String()))
		}
		b.WriteByte('}')
		return b.String()
	default:
		return ""
	}
}

func (d Detail) attr() (slog.Attr, bool) {
	switch d.kind {
	case DetailText:
		return slog.String("detail", d.text), true
	case DetailBinary:
		return slog.String("detail", hex.EncodeToString(d.data)), true
	case DetailError:
		return slog.String("error", d.err.Error()), true
	case DetailFields:
		args := make([]any, len(d.fields))
		for i, a := range d.fields {
			args[i] = a
		}
		return slog.Group("detail", args...), true
	default:
		return slog.Attr{}, false
	}
}

// Entry is one journal line.
type Entry struct {
	Offset  time.Duration
	Level   slog.Level
	Message string
	Detail  Detail
}

// String formats the entry the way the smoke page prints it.
func (e Entry) String() string {
	line := fmt.Sprintf("[%6d] %s", e.Offset.Milliseconds(), e.Message)
	if d := e.Detail.String(); d != "" {
		line += "  " + d
	}
	return line
}

// Journal is an append-only, ordered log of human readable diagnostics.
// Every entry is mirrored to the backing slog.Logger.
type Journal struct {
	logger *slog.Logger
	start  time.Time

	mu      sync.Mutex
	entries []Entry
}

// NewJournal creates an empty journal. A nil logger discards the mirror.
func NewJournal(logger *slog.Logger) *Journal {
	if logger == nil {
		logger = Nop()
	}
	return &Journal{logger: logger, start: time.Now()}
}

// Info appends an info entry.
func (j *Journal) Info(msg string, d Detail) { j.Add(slog.LevelInfo, msg, d) }

// Warn appends a warn entry.
func (j *Journal) Warn(msg string, d Detail) { j.Add(slog.LevelWarn, msg, d) }

// Error appends an error entry.
func (j *Journal) Error(msg string, d Detail) { j.Add(slog.LevelError, msg, d) }

// Add appends an entry with the given severity.
func (j *Journal) Add(level slog.Level, msg string, d Detail) {
	entry := Entry{
		Offset:  time.Since(j.start),
		Level:   level,
		Message: msg,
		Detail:  d,
	}

	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()

	if attr, ok := d.attr(); ok {
		j.logger.LogAttrs(context.Background(), level, msg, attr)
		return
	}
	j.logger.LogAttrs(context.Background(), level, msg)
}

// Entries returns a copy of the journal in append order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Count returns how many entries have the exact message.
func (j *Journal) Count(msg string) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := 0
	for _, e := range j.entries {
		if e.Message == msg {
			n++
		}
	}
	return n
}

// Clear drops all entries.
func (j *Journal) Clear() {
	j.mu.Lock()
	j.entries = nil
	j.mu.Unlock()
}
