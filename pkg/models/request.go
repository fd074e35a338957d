package models

import "time"

// RequestStatus is the state of a data-access request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusFulfilled RequestStatus = "fulfilled"
)

// transitions is the full state machine: Pending may be approved or rejected,
// Approved may be fulfilled or rejected, Fulfilled and Rejected are terminal.
var transitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusFulfilled, StatusRejected},
}

// CanTransition reports whether moving from s to next is legal. No transition
// re-enters a prior state; a fresh request is the only way back to Pending.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status value.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusFulfilled:
		return true
	}
	return false
}

// Request is a time-bound ask to access data of a given type. Gating happens
// at approval and fulfillment, never at creation.
type Request struct {
	RequestID          uint64        `json:"request_id"`
	Requester          string        `json:"requester"` // entity id or raw principal
	DataType           string        `json:"data_type"`
	Purpose            string        `json:"purpose"`
	RequestedLevel     AccessLevel   `json:"requested_level"`
	Status             RequestStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	ExpiresAt          time.Time     `json:"expires_at"`
	FulfillmentPointer string        `json:"fulfillment_pointer,omitempty"` // set only when fulfilled
}

// Expired reports whether the request's window has passed at the given
// instant. Like permission expiry this is checked lazily at use time; an
// expired request keeps its stored status until an operation rejects it.
func (r Request) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
