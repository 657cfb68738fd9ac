package domain

import "time"

// AuditRecord is an immutable record of an action taken by an actor.
// Where possible it is written in the same transaction as the state
// change that triggered it.
type AuditRecord struct {
	ID         int64     `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	ObjectType string    `json:"object_type"`
	ObjectID   string    `json:"object_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateAuditParams is the input data for appending an audit record.
type CreateAuditParams struct {
	Actor      string
	Action     string
	ObjectType string
	ObjectID   string
	RequestID  string
	Metadata   string
}
