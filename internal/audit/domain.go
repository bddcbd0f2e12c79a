// Package audit records security-relevant and data-access events.
// Events are append-only; retention and rotation are external concerns.
package audit

import (
	"strconv"
	"time"
)

// Action classifies what the actor did to a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Outcome classifies how the action ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// ResourceList is the ResourceID used for list reads.
const ResourceList = "list"

// Actor renders a portal user ID as an audit actor identifier.
func Actor(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Event is one immutable audit record.
type Event struct {
	ID         string
	ActorID    string
	Resource   string
	ResourceID string
	Action     Action
	Outcome    Outcome
	Context    map[string]any
	At         time.Time
}
