// Package audit provides audit logging for controller state changes.
package audit

import (
	"fmt"
	"time"
)

// Event represents an auditable mutation of controller state: a host
// registration, a tunnel create/delete, a network create/delete, or a
// DHCP configuration change.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Actor     string        `json:"actor"`
	Resource  string        `json:"resource"` // e.g. "host:3", "network:7", "tunnel:12"
	Operation string        `json:"operation"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Duration  time.Duration `json:"duration"`
	ClientIP  string        `json:"client_ip,omitempty"`
}

// Filter defines criteria for querying audit events.
type Filter struct {
	Resource    string
	Operation   string
	Actor       string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event for the given resource and operation.
func NewEvent(actor, resource, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		Actor:     actor,
		Resource:  resource,
		Operation: operation,
	}
}

// WithDetail attaches a free-form detail string (e.g. a rendered summary).
func (e *Event) WithDetail(detail string) *Event {
	e.Detail = detail
	return e
}

// WithSuccess marks the event as successful.
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed and records the error text.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithClientIP records the HTTP client that triggered the event.
func (e *Event) WithClientIP(ip string) *Event {
	e.ClientIP = ip
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
