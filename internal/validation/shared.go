package validation

import (
	"fmt"
	"strings"
)

// Error collects per-field validation failures for one payload, keyed by
// field name. Handlers surface Fields to the client as error details.
type Error struct {
	Fields map[string]string
}

// Error joins the field messages into one string, in map order.
func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, msg))
	}
	return strings.Join(msgs, "; ")
}
