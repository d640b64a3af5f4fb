package store

import (
	"context"
	"time"

	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

// SessionStore persists access sessions. Implementations must keep at most
// one open session per member: Create fails with ErrOpenSessionExists rather
// than storing a second one.
//
// All list methods return sessions newest-first (by entry time, except
// FindRecent which orders by creation time) and never return nil on success.
type SessionStore interface {
	// Create stores a new open session and returns it with ID and audit
	// timestamps assigned.
	Create(ctx context.Context, s types.AccessSession) (types.AccessSession, error)

	// Close sets the exit time of an open session. It fails with
	// ErrSessionNotOpen if the session is already closed and ErrNotFound if
	// it does not exist.
	Close(ctx context.Context, id int64, exitAt time.Time, exitQRCode string) (types.AccessSession, error)

	FindByID(ctx context.Context, id int64) (types.AccessSession, error)
	FindOpenByMember(ctx context.Context, memberID int64) (types.AccessSession, bool, error)
	FindByMember(ctx context.Context, memberID int64) ([]types.AccessSession, error)

	// FindByRange returns sessions whose entry time lies in [start, end].
	FindByRange(ctx context.Context, start, end time.Time) ([]types.AccessSession, error)
	FindAllOpen(ctx context.Context) ([]types.AccessSession, error)
	CountOpen(ctx context.Context) (int64, error)

	FindRecent(ctx context.Context, limit int) ([]types.AccessSession, error)
	FindByQRCode(ctx context.Context, code string) ([]types.AccessSession, error)

	// Delete removes a session record. Administrative use only.
	Delete(ctx context.Context, id int64) error
}
