package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

type MemberDirectory struct {
	mu      sync.RWMutex
	members map[int64]types.Member
}

func NewMemberDirectory(members ...types.Member) *MemberDirectory {
	d := &MemberDirectory{members: make(map[int64]types.Member, len(members))}
	for _, m := range members {
		if m.MemberID > 0 {
			d.members[m.MemberID] = normalizeMember(m)
		}
	}
	return d
}

func (d *MemberDirectory) ResolveMember(_ context.Context, memberID int64) (types.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[memberID]
	if !ok {
		return types.Member{}, store.ErrNotFound
	}
	return m, nil
}

func (d *MemberDirectory) UpsertMember(_ context.Context, m types.Member) error {
	if m.MemberID <= 0 {
		return fmt.Errorf("%w: %d", store.ErrInvalidMemberID, m.MemberID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.MemberID] = normalizeMember(m)
	return nil
}

func normalizeMember(m types.Member) types.Member {
	m.Name = strings.TrimSpace(m.Name)
	m.Surname = strings.TrimSpace(m.Surname)
	return m
}
