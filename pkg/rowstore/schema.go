package rowstore

import (
	"fmt"
	"strconv"
	"strings"
)

// NoKeyColumn marks append-only sheets such as the audit log.
const NoKeyColumn = -1

// Schema describes the fixed column layout of one sheet.
type Schema struct {
	Sheet     string
	Header    []string
	KeyColumn int
}

func (s Schema) Width() int {
	return len(s.Header)
}

func (s Schema) Keyed() bool {
	return s.KeyColumn >= 0 && s.KeyColumn < len(s.Header)
}

// LastColumn returns the A1 letter of the last column, e.g. "P" for 16 columns.
func (s Schema) LastColumn() string {
	return ColumnName(s.Width() - 1)
}

func (s Schema) validate() error {
	if strings.TrimSpace(s.Sheet) == "" {
		return fmt.Errorf("rowstore: schema sheet name required")
	}
	if len(s.Header) == 0 {
		return fmt.Errorf("rowstore: schema %q has no columns", s.Sheet)
	}
	if s.KeyColumn >= len(s.Header) {
		return fmt.Errorf("rowstore: schema %q key column %d out of range", s.Sheet, s.KeyColumn)
	}
	return nil
}

// Codec maps a record to and from its ordered cells.
type Codec[T any] interface {
	Encode(record T) []string
	Decode(cells []string) (T, error)
}

// Cell returns cells[i] or "" when the row is short.
func Cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// FormatBool renders booleans the way spreadsheets display them.
func FormatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// ParseBool accepts TRUE/FALSE in any case plus the usual strconv forms.
// Blank cells are false.
func ParseBool(raw string) (bool, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(clean))
}

// pad returns cells resized to width, filling with blanks.
func pad(cells []string, width int) []string {
	out := make([]string, width)
	copy(out, cells)
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
