// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlanType selects the rate-limit and quota parameters of a tenant.
type PlanType string

// Known plan types.
const (
	PlanFree       PlanType = "free"
	PlanPro        PlanType = "pro"
	PlanEnterprise PlanType = "enterprise"
)

// Valid reports whether the plan type is one of the known plans.
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

// Known subscription statuses.
const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
)

// Subscriptions exposes methods to manage subscriptions table in database.
type Subscriptions interface {
	// Insert is a method for inserting a subscription into the database.
	// It must fail with a conflict when the tenant already has an active one.
	Insert(ctx context.Context, sub *Subscription) (*Subscription, error)
	// Get is a method for querying a subscription by id.
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// GetActiveByTenantID returns the tenant's active subscription.
	GetActiveByTenantID(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	// Update persists mutable subscription fields.
	Update(ctx context.Context, sub *Subscription) error
}

// Subscription binds a tenant to a plan for a billing period. At most one
// active subscription exists per tenant.
type Subscription struct {
	ID                uuid.UUID          `json:"id"`
	TenantID          uuid.UUID          `json:"tenantId"`
	PlanType          PlanType           `json:"planType"`
	Status            SubscriptionStatus `json:"status"`
	PeriodStart       time.Time          `json:"periodStart"`
	PeriodEnd         time.Time          `json:"periodEnd"`
	CancelAtPeriodEnd bool               `json:"cancelAtPeriodEnd"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// CreateSubscription contains the input for creating a subscription.
type CreateSubscription struct {
	TenantID uuid.UUID `json:"tenantId"`
	PlanType PlanType  `json:"planType"`
}
