package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultTask is the task name recorded for entries added by hand (API or CLI)
// when the caller does not name one.
const DefaultTask = "seen_plugin_API"

// Entry represents a previously seen item
type Entry struct {
	ID     int64     `json:"id" yaml:"id"`
	Title  string    `json:"title" yaml:"title"`
	Task   string    `json:"task" yaml:"task"`
	Reason string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Added  time.Time `json:"added" yaml:"added"`
	Local  bool      `json:"local" yaml:"local"`
	Fields []Field   `json:"fields" yaml:"fields"`
}

// Field is a named value of an entry used for duplicate detection
type Field struct {
	ID      int64     `json:"id" yaml:"id"`
	Field   string    `json:"field" yaml:"field"`
	Value   string    `json:"value" yaml:"value"`
	Added   time.Time `json:"added" yaml:"added"`
	EntryID int64     `json:"seen_entry_id" yaml:"seen_entry_id"`
}

// FieldValues maps field names to values for a new entry
type FieldValues map[string]string

// Validate checks that there is at least one field and that no name or value is empty
func (fv FieldValues) Validate() error {
	if len(fv) == 0 {
		return NewValidationError("fields", "at least one field is required")
	}
	for name, value := range fv {
		if strings.TrimSpace(name) == "" {
			return NewValidationError("fields", "field name must not be empty")
		}
		if value == "" {
			return NewValidationError("fields", fmt.Sprintf("value of field %q must not be empty", name))
		}
	}
	return nil
}

// Names returns the field names in sorted order
func (fv FieldValues) Names() []string {
	names := make([]string, 0, len(fv))
	for name := range fv {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns the field values ordered by field name
func (fv FieldValues) Values() []string {
	names := fv.Names()
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = fv[name]
	}
	return values
}

// NewEntry is the input for creating an entry
type NewEntry struct {
	Title  string
	Task   string
	Reason string
	Local  bool
	Fields FieldValues
}

// Validate checks the title and fields of a new entry
func (n NewEntry) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return NewValidationError("title", "title is required")
	}
	return n.Fields.Validate()
}

// Filter selects entries for search and bulk delete.
// An empty Value matches every entry; a nil Local matches both scopes.
type Filter struct {
	Value string
	Local *bool
}

// Matches reports whether the entry passes the filter
func (f Filter) Matches(e *Entry) bool {
	if f.Local != nil && e.Local != *f.Local {
		return false
	}
	if f.Value == "" {
		return true
	}
	for _, field := range e.Fields {
		if strings.Contains(field.Value, f.Value) {
			return true
		}
	}
	return false
}

// SortKey names the entry attribute used for ordering search results
type SortKey string

const (
	SortByTitle SortKey = "title"
	SortByTask  SortKey = "task"
	SortByAdded SortKey = "added"
	SortByLocal SortKey = "local"
	SortByID    SortKey = "id"
)

// SortKeys lists the accepted sort keys
var SortKeys = []SortKey{SortByTitle, SortByTask, SortByAdded, SortByLocal, SortByID}

// ParseSortKey converts a string into a SortKey
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", NewValidationError("sort_by", fmt.Sprintf("unknown sort key %q", s))
}

// Order is the sort direction
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder converts a string into an Order
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case OrderAsc, OrderDesc:
		return Order(s), nil
	}
	return "", NewValidationError("order", fmt.Sprintf("unknown order %q", s))
}

// Descending reports whether the order is descending
func (o Order) Descending() bool {
	return o == OrderDesc
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}
