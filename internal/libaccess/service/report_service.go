package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 500
)

// ReportService answers read-only questions about sessions. Every call goes
// to the store; nothing is cached.
type ReportService struct {
	sessions store.SessionStore
}

func NewReportService(sessions store.SessionStore) *ReportService {
	return &ReportService{sessions: sessions}
}

func (r *ReportService) OccupancyCount(ctx context.Context) (int64, error) {
	n, err := r.sessions.CountOpen(ctx)
	if err != nil {
		return 0, storageErr("count open sessions", err)
	}
	return n, nil
}

// CurrentlyInside lists open sessions, most recent entry first.
func (r *ReportService) CurrentlyInside(ctx context.Context) ([]types.AccessSession, error) {
	out, err := r.sessions.FindAllOpen(ctx)
	if err != nil {
		return nil, storageErr("list open sessions", err)
	}
	return out, nil
}

func (r *ReportService) HistoryFor(ctx context.Context, memberID int64) ([]types.AccessSession, error) {
	if memberID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMemberID, memberID)
	}
	out, err := r.sessions.FindByMember(ctx, memberID)
	if err != nil {
		return nil, storageErr("list member sessions", err)
	}
	return out, nil
}

// ReportBetween lists sessions whose entry time falls in [start, end].
func (r *ReportService) ReportBetween(ctx context.Context, start, end time.Time) ([]types.AccessSession, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: start=%s end=%s", ErrInvalidRange,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	out, err := r.sessions.FindByRange(ctx, start, end)
	if err != nil {
		return nil, storageErr("list sessions in range", err)
	}
	return out, nil
}

// Recent returns the most recently created sessions. limit <= 0 means
// DefaultRecentLimit; it is capped at MaxRecentLimit.
func (r *ReportService) Recent(ctx context.Context, limit int) ([]types.AccessSession, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}
	out, err := r.sessions.FindRecent(ctx, limit)
	if err != nil {
		return nil, storageErr("list recent sessions", err)
	}
	return out, nil
}

func (r *ReportService) Session(ctx context.Context, id int64) (types.AccessSession, error) {
	sess, err := r.sessions.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.AccessSession{}, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if err != nil {
		return types.AccessSession{}, storageErr("find session", err)
	}
	return sess, nil
}

// ByQRCode lists sessions that used code at entry or exit.
func (r *ReportService) ByQRCode(ctx context.Context, code string) ([]types.AccessSession, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidQRCode
	}
	out, err := r.sessions.FindByQRCode(ctx, code)
	if err != nil {
		return nil, storageErr("list sessions by code", err)
	}
	return out, nil
}

// AdminService holds operator overrides that sit outside the tracker's
// lifecycle rules.
type AdminService struct {
	sessions store.SessionStore
	logger   *slog.Logger
}

func NewAdminService(sessions store.SessionStore, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{sessions: sessions, logger: logger}
}

func (a *AdminService) DeleteSession(ctx context.Context, id int64) error {
	err := a.sessions.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if err != nil {
		return storageErr("delete session", err)
	}
	a.logger.WarnContext(ctx, "access session deleted by admin", "session_id", id)
	return nil
}
