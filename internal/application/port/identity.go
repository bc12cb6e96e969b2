package port

import (
	"context"

	"github.com/garyjia/caseflow/internal/domain/entity"
)

// IdentityProvider resolves a user id to its role and active flag.
// Resolve returns (nil, nil) for unknown users.
type IdentityProvider interface {
	Resolve(ctx context.Context, userID string) (*entity.User, error)
}

// UserDirectory is the writable side of the identity store, used by admin tooling
type UserDirectory interface {
	IdentityProvider
	Upsert(ctx context.Context, u *entity.User) error
	List(ctx context.Context) ([]*entity.User, error)
}
