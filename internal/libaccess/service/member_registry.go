package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

// MemberRegistry resolves members through the external directory and
// translates its answers into service errors.
type MemberRegistry struct {
	dir store.MemberDirectory
}

func NewMemberRegistry(dir store.MemberDirectory) *MemberRegistry {
	return &MemberRegistry{dir: dir}
}

func (r *MemberRegistry) Resolve(ctx context.Context, memberID int64) (types.Member, error) {
	if memberID <= 0 {
		return types.Member{}, fmt.Errorf("%w: %d", ErrInvalidMemberID, memberID)
	}
	m, err := r.dir.ResolveMember(ctx, memberID)
	if errors.Is(err, store.ErrNotFound) {
		return types.Member{}, fmt.Errorf("%w: %d", ErrMemberNotFound, memberID)
	}
	if err != nil {
		return types.Member{}, storageErr("resolve member", err)
	}
	m.MemberID = memberID
	return m, nil
}
