package persistence

import (
	"context"
	"time"
)

// Base is embedded by every persisted record.
type Base struct {
	ID         int64      `json:"id"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	ModifiedBy *string    `json:"modifiedBy,omitempty"`
	ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
	IsDeleted  bool       `json:"isDeleted"`
}

// EntityBase lets generic code reach the embedded Base of any record.
func (b *Base) EntityBase() *Base { return b }

// Entity is implemented by pointers to structs embedding Base.
type Entity interface {
	EntityBase() *Base
}

// SystemPrincipal is recorded when no principal is attached to the context.
const SystemPrincipal = "System"

type principalKey struct{}

// WithPrincipal attaches the acting principal used for audit attribution.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the acting principal, or SystemPrincipal.
func PrincipalFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey{}).(string); ok && p != "" {
		return p
	}
	return SystemPrincipal
}

// Now returns the storage clock reading: UTC, truncated to the microsecond
// precision both engines keep.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
