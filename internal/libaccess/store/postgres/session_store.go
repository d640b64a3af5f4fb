package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

const sessionColumns = `id, member_id, member_name, member_surname, entry_at, exit_at,
  qr_code, exit_qr_code, access_method, is_active, created_at, updated_at`

type SessionStore struct {
	db  DBTX
	now func() time.Time
}

func NewSessionStore(db DBTX) *SessionStore {
	return &SessionStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SessionStore) Create(ctx context.Context, sess types.AccessSession) (types.AccessSession, error) {
	if sess.AccessMethod == "" {
		sess.AccessMethod = types.AccessMethodQRMobile
	}
	now := s.now()

	query := `INSERT INTO access_sessions (member_id, member_name, member_surname, entry_at,
  qr_code, access_method, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8)
RETURNING ` + sessionColumns

	out, err := scanSession(s.db.QueryRowContext(ctx, query,
		sess.MemberID, sess.MemberName, sess.MemberSurname, sess.EntryTime.UTC(),
		sess.QRCode, string(sess.AccessMethod), now, now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return types.AccessSession{}, store.ErrOpenSessionExists
		}
		return types.AccessSession{}, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *SessionStore) Close(ctx context.Context, id int64, exitAt time.Time, exitQRCode string) (types.AccessSession, error) {
	query := `UPDATE access_sessions
SET exit_at = $1, exit_qr_code = $2, is_active = FALSE, updated_at = $3
WHERE id = $4 AND is_active
RETURNING ` + sessionColumns

	out, err := scanSession(s.db.QueryRowContext(ctx, query, exitAt.UTC(), exitQRCode, s.now(), id))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.AccessSession{}, fmt.Errorf("db error: %w", err)
	}

	// Nothing updated: the session is either missing or already closed.
	var active bool
	err = s.db.QueryRowContext(ctx, `SELECT is_active FROM access_sessions WHERE id = $1`, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessSession{}, store.ErrNotFound
	}
	if err != nil {
		return types.AccessSession{}, fmt.Errorf("db error: %w", err)
	}
	return types.AccessSession{}, store.ErrSessionNotOpen
}

func (s *SessionStore) FindByID(ctx context.Context, id int64) (types.AccessSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM access_sessions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessSession{}, store.ErrNotFound
	}
	if err != nil {
		return types.AccessSession{}, fmt.Errorf("db error: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) FindOpenByMember(ctx context.Context, memberID int64) (types.AccessSession, bool, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM access_sessions WHERE member_id = $1 AND is_active`, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessSession{}, false, nil
	}
	if err != nil {
		return types.AccessSession{}, false, fmt.Errorf("db error: %w", err)
	}
	return sess, true, nil
}

func (s *SessionStore) FindByMember(ctx context.Context, memberID int64) ([]types.AccessSession, error) {
	return s.list(ctx, `WHERE member_id = $1 ORDER BY entry_at DESC, id DESC`, memberID)
}

func (s *SessionStore) FindByRange(ctx context.Context, start, end time.Time) ([]types.AccessSession, error) {
	return s.list(ctx, `WHERE entry_at BETWEEN $1 AND $2 ORDER BY entry_at DESC, id DESC`, ceilMicro(start.UTC()), end.UTC())
}

// ceilMicro rounds t up to timestamptz resolution so the lower bound stays
// inclusive-only.
func ceilMicro(t time.Time) time.Time {
	if r := t.Truncate(time.Microsecond); r.Before(t) {
		return r.Add(time.Microsecond)
	}
	return t
}

func (s *SessionStore) FindAllOpen(ctx context.Context) ([]types.AccessSession, error) {
	return s.list(ctx, `WHERE is_active ORDER BY entry_at DESC, id DESC`)
}

func (s *SessionStore) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_sessions WHERE is_active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (s *SessionStore) FindRecent(ctx context.Context, limit int) ([]types.AccessSession, error) {
	if limit <= 0 {
		return s.list(ctx, `ORDER BY created_at DESC, id DESC`)
	}
	return s.list(ctx, `ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (s *SessionStore) FindByQRCode(ctx context.Context, code string) ([]types.AccessSession, error) {
	return s.list(ctx, `WHERE qr_code = $1 OR exit_qr_code = $1 ORDER BY entry_at DESC, id DESC`, strings.TrimSpace(code))
}

func (s *SessionStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SessionStore) list(ctx context.Context, tail string, args ...any) ([]types.AccessSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM access_sessions `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]types.AccessSession, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (types.AccessSession, error) {
	var (
		sess   types.AccessSession
		exitAt sql.NullTime
		exitQR sql.NullString
		method string
	)
	if err := r.Scan(
		&sess.ID, &sess.MemberID, &sess.MemberName, &sess.MemberSurname, &sess.EntryTime, &exitAt,
		&sess.QRCode, &exitQR, &method, &sess.Active, &sess.CreatedAt, &sess.UpdatedAt,
	); err != nil {
		return types.AccessSession{}, err
	}
	sess.EntryTime = sess.EntryTime.UTC()
	if exitAt.Valid {
		t := exitAt.Time.UTC()
		sess.ExitTime = &t
	}
	sess.ExitQRCode = exitQR.String
	sess.AccessMethod = types.AccessMethod(method)
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return sess, nil
}
