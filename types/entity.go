// Package types provides common types used across Remit.
package types

import "time"

// Entity is the base type for all Remit entities with timestamps and an
// optimistic-concurrency version. Embed this in your domain types.
//
// Version starts at 1 on creation and is incremented by every successful
// conditional update; a writer that presents a stale version loses the race.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// NewEntity creates a new Entity with current timestamps and version 1.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Bump advances the version and touches the entity. Stores call this after
// a conditional update succeeds so the in-memory copy matches what was written.
func (e *Entity) Bump() {
	e.Version++
	e.Touch()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// LastModified returns how long ago the entity was last updated.
func (e Entity) LastModified() time.Duration {
	return time.Since(e.UpdatedAt)
}
