// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console

// DB contains access to the different control-plane repositories.
type DB interface {
	// Tenants is a getter for Tenants repository.
	Tenants() Tenants
	// Projects is a getter for Projects repository.
	Projects() Projects
	// APIKeys is a getter for APIKeys repository.
	APIKeys() APIKeys
	// Subscriptions is a getter for Subscriptions repository.
	Subscriptions() Subscriptions
	// Leaderboards is a getter for Leaderboards repository.
	Leaderboards() Leaderboards
	// Seasons is a getter for Seasons repository.
	Seasons() Seasons

	// Close is used to close db connection.
	Close() error
}
