package db

import (
	"context"
	"fmt"

	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

// MemberUpserter is satisfied by every member directory backend.
type MemberUpserter interface {
	UpsertMember(ctx context.Context, m types.Member) error
}

// SeedDev writes the configured members into the directory. Re-running it
// refreshes names without creating duplicates.
func SeedDev(ctx context.Context, dir MemberUpserter, members []types.Member) error {
	for _, m := range members {
		if err := dir.UpsertMember(ctx, m); err != nil {
			return fmt.Errorf("seed member %d: %w", m.MemberID, err)
		}
	}
	return nil
}
