// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// KeyPrefix is prepended to every generated plaintext key.
const KeyPrefix = "ak_"

// keySecretSize is the number of random bytes behind a key, 256 bits.
const keySecretSize = 32

// ErrKeyGeneration is returned when secure random material cannot be drawn.
var ErrKeyGeneration = errs.Class("api key generation")

// APIKeys exposes methods to manage api keys table in database.
type APIKeys interface {
	// Insert is a method for inserting an api key into the database.
	Insert(ctx context.Context, key *APIKey) (*APIKey, error)
	// Get is a method for querying an api key by id.
	Get(ctx context.Context, id uuid.UUID) (*APIKey, error)
	// GetByFingerprint returns the usable (non-revoked) key matching the
	// cache fingerprint. Revoked keys are filtered in the query so the
	// expensive hash comparison only runs against live candidates.
	GetByFingerprint(ctx context.Context, fingerprint string) (*APIKey, error)
	// GetByProjectID returns all keys of a project, revoked included.
	GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]APIKey, error)
	// Revoke marks the key revoked at the given time.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	// TouchLastUsed updates lastUsedAt, best effort.
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	// CountActiveByTenant counts non-revoked keys across the tenant's projects.
	CountActiveByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// APIKey is the persisted form of an api key. The plaintext is returned
// exactly once at creation and never stored; KeyHash is an adaptive hash of
// it and Fingerprint a short deterministic digest used for lookup and for
// addressing the validation cache entry on revocation.
type APIKey struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"projectId"`
	Name        string     `json:"name"`
	KeyHash     []byte     `json:"-"`
	Fingerprint string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

// Revoked reports whether the key has been revoked.
func (key *APIKey) Revoked() bool { return key.RevokedAt != nil }

// CreateAPIKey contains the input for creating an api key.
type CreateAPIKey struct {
	ProjectID uuid.UUID `json:"projectId"`
	Name      string    `json:"name"`
}

// CreatedAPIKey is returned from key creation and is the only place the
// plaintext ever appears.
type CreatedAPIKey struct {
	Key       APIKey `json:"key"`
	Plaintext string `json:"plaintext"`
}

// Validation is the result of validating a plaintext key.
type Validation struct {
	Valid     bool      `json:"valid"`
	KeyID     uuid.UUID `json:"keyId,omitempty"`
	TenantID  uuid.UUID `json:"tenantId,omitempty"`
	ProjectID uuid.UUID `json:"projectId,omitempty"`
	PlanType  PlanType  `json:"planType,omitempty"`
}

// GeneratePlaintextKey draws 256 bits from the secure RNG and encodes them
// URL-safe with the ak_ prefix.
func GeneratePlaintextKey() (string, error) {
	secret := make([]byte, keySecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", ErrKeyGeneration.Wrap(err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(secret), nil
}

// KeyFingerprint derives the deterministic lookup digest of a plaintext key:
// the first 16 hex characters of its sha256. The same digest addresses the
// gateway's validation cache entry.
func KeyFingerprint(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])[:16]
}
