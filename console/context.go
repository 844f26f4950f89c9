// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package console

import (
	"context"

	"github.com/google/uuid"

	"github.com/podiumhq/podium/apierr"
)

// TenantContext is the request-scoped identity resolved by the gateway and
// propagated to every downstream component.
type TenantContext struct {
	TenantID  uuid.UUID
	ProjectID uuid.UUID
	PlanType  PlanType
}

type tenantContextKey struct{}

// WithTenant returns a context carrying the tenant context.
func WithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// GetTenant returns the tenant context or an unauthenticated error when the
// request never passed gateway authentication.
func GetTenant(ctx context.Context) (TenantContext, error) {
	tc, ok := ctx.Value(tenantContextKey{}).(TenantContext)
	if !ok {
		return TenantContext{}, apierr.ErrUnauthenticated.New("missing tenant context")
	}
	return tc, nil
}
