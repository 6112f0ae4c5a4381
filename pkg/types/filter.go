package types

import "github.com/cuemby/dwn/pkg/filter"

// MessageFilter is one conjunction of property conditions used by
// Records/Query, Records/Read, and Records/Subscribe. Property names are
// either fixed message-store fields ("schema", "protocol", "recordId", ...)
// or tag filters, addressed as "tags.<name>".
type MessageFilter struct {
	Properties map[string]filter.Condition `json:"-"`
}

// EventFilter is one conjunction of property conditions used by
// Events/Query, evaluated against an Event's Indexes map.
type EventFilter struct {
	Properties map[string]filter.Condition `json:"-"`
}
