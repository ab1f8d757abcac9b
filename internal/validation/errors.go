package validation

import (
	"fmt"
	"strings"
)

// Errors collects messages per field, remembering the order fields first failed in.
type Errors struct {
	order  []string
	fields map[string][]string
}

func NewErrors() *Errors {
	return &Errors{fields: map[string][]string{}}
}

func (e *Errors) Add(field, message string) {
	if _, ok := e.fields[field]; !ok {
		e.order = append(e.order, field)
	}
	e.fields[field] = append(e.fields[field], message)
}

func (e *Errors) Empty() bool {
	return e == nil || len(e.order) == 0
}

// Fields returns field → messages. The map is the one held by e.
func (e *Errors) Fields() map[string][]string {
	return e.fields
}

// Message renders the first message, followed by "(and N more error(s))" when there
// are others.
func (e *Errors) Message() string {
	if e.Empty() {
		return ""
	}
	total := 0
	for _, msgs := range e.fields {
		total += len(msgs)
	}
	first := e.fields[e.order[0]][0]
	switch rest := total - 1; rest {
	case 0:
		return first
	case 1:
		return first + " (and 1 more error)"
	default:
		return fmt.Sprintf("%s (and %d more errors)", first, rest)
	}
}

func (e *Errors) Error() string {
	return "validation failed: " + e.Message()
}

// Attribute turns a field key into the name used inside messages.
func Attribute(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
