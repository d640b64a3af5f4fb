package store

import (
	"context"

	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

// MemberDirectory resolves member identifiers to display records.
// ResolveMember returns ErrNotFound for unknown members.
type MemberDirectory interface {
	ResolveMember(ctx context.Context, memberID int64) (types.Member, error)
	UpsertMember(ctx context.Context, m types.Member) error
}
