// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package scoredb

import (
	"github.com/google/uuid"
)

// Fingerprint identifies a leaderboard's namespace in the sorted-set store.
// The derived keys are deterministic in (tenant, project, leaderboard), so
// two tenants never share a key.
type Fingerprint struct {
	TenantID      uuid.UUID
	ProjectID     uuid.UUID
	LeaderboardID uuid.UUID
}

// Key is the sorted-set key holding the scores, member=userId.
func (fp Fingerprint) Key() string {
	return "l:" + fp.TenantID.String() + ":" + fp.ProjectID.String() + ":" + fp.LeaderboardID.String()
}

// MetaKey is the hash key holding the leaderboard configuration.
func (fp Fingerprint) MetaKey() string {
	return "l:meta:" + fp.TenantID.String() + ":" + fp.ProjectID.String() + ":" + fp.LeaderboardID.String()
}
