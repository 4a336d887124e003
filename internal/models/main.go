// Package models defines the core data structures for vault items and
// the summaries derived from them.
package models

import "time"

// ItemKind identifies what a vault item carries.
type ItemKind string

const (
	// KindText is an item whose content is the payload itself.
	KindText ItemKind = "text"
	// KindFile is an item whose content is a blob storage key.
	KindFile ItemKind = "file"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	return k == KindText || k == KindFile
}

// Status is the lifecycle state of an item derived at query time.
type Status string

const (
	// StatusActive means the item still admits views.
	StatusActive Status = "active"
	// StatusExpired means the expiry time has passed.
	StatusExpired Status = "expired"
	// StatusLimitReached means the view ceiling has been consumed.
	StatusLimitReached Status = "limit_reached"
)

// VaultItem is one deposited text payload or file reference together with
// its access-control metadata.
type VaultItem struct {
	// ID is the external identifier, immutable after creation.
	ID string
	// Kind is text or file, immutable.
	Kind ItemKind
	// Content is the text payload or the blob storage key. Nil once a file
	// blob has been reclaimed.
	Content *string
	// FileName is the original upload name, nil for text items.
	FileName *string
	// PasswordHash is the bcrypt hash gating access, nil when ungated.
	PasswordHash *string
	// OwnerID references the creating identity, nil for anonymous deposits.
	OwnerID *string
	// ExpiresAt is the end of the admission window.
	ExpiresAt time.Time
	// MaxViews is the admission ceiling, 0 means unbounded.
	MaxViews int
	// ViewCount is the number of admissions so far.
	ViewCount int
	// CreatedAt is the deposit time.
	CreatedAt time.Time
}

// HasPassword reports whether the item is password gated.
func (i *VaultItem) HasPassword() bool {
	return i.PasswordHash != nil && *i.PasswordHash != ""
}

// Reclaimed reports whether a file item has lost its blob.
func (i *VaultItem) Reclaimed() bool {
	return i.Kind == KindFile && i.Content == nil
}

// Summary is the owner-facing view of an item. It never carries the
// content or the password hash.
type Summary struct {
	ID        string    `json:"id"`
	Kind      ItemKind  `json:"type"`
	FileName  *string   `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expiry_at"`
	MaxViews  int       `json:"max_views"`
	ViewCount int       `json:"current_views"`
	Status    Status    `json:"status"`
}

// ReclaimRef points at a file blob whose item no longer admits access.
type ReclaimRef struct {
	ID         string
	StorageKey string
}
