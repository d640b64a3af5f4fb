package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	dbpkg "github.com/biblioteca/libaccess/internal/db"
	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

const sessionColumns = `
  id, member_id, member_name, member_surname, entry_at_ms, exit_at_ms,
  qr_code, exit_qr_code, access_method, is_active, created_at_ms, updated_at_ms`

// SessionStore keeps access sessions in SQLite. Writes go through the
// single-writer Worker; reads use the pool directly.
type SessionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	now    func() time.Time
}

func NewSessionStore(db *sql.DB, writer *dbpkg.Worker) *SessionStore {
	return &SessionStore{
		db:     db,
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionStore) Create(ctx context.Context, sess types.AccessSession) (types.AccessSession, error) {
	nowMs := s.now().UnixMilli()
	if sess.AccessMethod == "" {
		sess.AccessMethod = types.AccessMethodQRMobile
	}

	var out types.AccessSession
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_sessions(
  member_id, member_name, member_surname, entry_at_ms, exit_at_ms,
  qr_code, exit_qr_code, access_method, is_active, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, NULL, ?, NULL, ?, 1, ?, ?);
`,
			sess.MemberID, sess.MemberName, sess.MemberSurname, sess.EntryTime.UTC().UnixMilli(),
			sess.QRCode, string(sess.AccessMethod), nowMs, nowMs,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrOpenSessionExists
			}
			return fmt.Errorf("Create insert: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Create last id: %w", err)
		}
		out, err = scanSession(tx.QueryRowContext(ctx, `SELECT`+sessionColumns+` FROM access_sessions WHERE id = ?;`, id))
		if err != nil {
			return fmt.Errorf("Create reload: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.AccessSession{}, err
	}
	return out, nil
}

func (s *SessionStore) Close(ctx context.Context, id int64, exitAt time.Time, exitQRCode string) (types.AccessSession, error) {
	nowMs := s.now().UnixMilli()

	var out types.AccessSession
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE access_sessions
SET exit_at_ms    = ?,
    exit_qr_code  = ?,
    is_active     = 0,
    updated_at_ms = ?
WHERE id = ? AND is_active = 1;
`, exitAt.UTC().UnixMilli(), exitQRCode, nowMs, id)
		if err != nil {
			return fmt.Errorf("Close update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Close rows affected: %w", err)
		}

		out, err = scanSession(tx.QueryRowContext(ctx, `SELECT`+sessionColumns+` FROM access_sessions WHERE id = ?;`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("Close reload: %w", err)
		}
		if n == 0 {
			return store.ErrSessionNotOpen
		}
		return nil
	})
	if err != nil {
		return types.AccessSession{}, err
	}
	return out, nil
}

func (s *SessionStore) FindByID(ctx context.Context, id int64) (types.AccessSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `SELECT`+sessionColumns+` FROM access_sessions WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessSession{}, store.ErrNotFound
	}
	if err != nil {
		return types.AccessSession{}, fmt.Errorf("FindByID: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) FindOpenByMember(ctx context.Context, memberID int64) (types.AccessSession, bool, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT`+sessionColumns+` FROM access_sessions WHERE member_id = ? AND is_active = 1;`, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.AccessSession{}, false, nil
	}
	if err != nil {
		return types.AccessSession{}, false, fmt.Errorf("FindOpenByMember: %w", err)
	}
	return sess, true, nil
}

func (s *SessionStore) FindByMember(ctx context.Context, memberID int64) ([]types.AccessSession, error) {
	return s.list(ctx, "FindByMember", `WHERE member_id = ? ORDER BY entry_at_ms DESC, id DESC`, memberID)
}

func (s *SessionStore) FindByRange(ctx context.Context, start, end time.Time) ([]types.AccessSession, error) {
	return s.list(ctx, "FindByRange",
		`WHERE entry_at_ms BETWEEN ? AND ? ORDER BY entry_at_ms DESC, id DESC`,
		ceilMilli(start), end.UTC().UnixMilli())
}

// ceilMilli rounds t up to the next whole millisecond so a sub-millisecond
// lower bound never admits an earlier entry.
func ceilMilli(t time.Time) int64 {
	ms := t.UnixMilli()
	if time.UnixMilli(ms).Before(t) {
		ms++
	}
	return ms
}

func (s *SessionStore) FindAllOpen(ctx context.Context) ([]types.AccessSession, error) {
	return s.list(ctx, "FindAllOpen", `WHERE is_active = 1 ORDER BY entry_at_ms DESC, id DESC`)
}

func (s *SessionStore) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_sessions WHERE is_active = 1;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountOpen: %w", err)
	}
	return n, nil
}

func (s *SessionStore) FindRecent(ctx context.Context, limit int) ([]types.AccessSession, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return s.list(ctx, "FindRecent", `ORDER BY created_at_ms DESC, id DESC LIMIT ?`, limit)
}

func (s *SessionStore) FindByQRCode(ctx context.Context, code string) ([]types.AccessSession, error) {
	code = strings.TrimSpace(code)
	return s.list(ctx, "FindByQRCode",
		`WHERE qr_code = ? OR exit_qr_code = ? ORDER BY entry_at_ms DESC, id DESC`, code, code)
}

func (s *SessionStore) Delete(ctx context.Context, id int64) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM access_sessions WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("Delete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Delete rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *SessionStore) list(ctx context.Context, op, tail string, args ...any) ([]types.AccessSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT`+sessionColumns+` FROM access_sessions `+tail+`;`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", op, err)
	}
	defer rows.Close()

	out := make([]types.AccessSession, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (types.AccessSession, error) {
	var (
		sess      types.AccessSession
		entryMs   int64
		exitMs    sql.NullInt64
		exitQR    sql.NullString
		method    string
		active    int
		createdMs int64
		updatedMs int64
	)
	if err := r.Scan(
		&sess.ID, &sess.MemberID, &sess.MemberName, &sess.MemberSurname, &entryMs, &exitMs,
		&sess.QRCode, &exitQR, &method, &active, &createdMs, &updatedMs,
	); err != nil {
		return types.AccessSession{}, err
	}

	sess.EntryTime = time.UnixMilli(entryMs).UTC()
	if exitMs.Valid {
		t := time.UnixMilli(exitMs.Int64).UTC()
		sess.ExitTime = &t
	}
	sess.ExitQRCode = exitQR.String
	sess.AccessMethod = types.AccessMethod(method)
	sess.Active = active == 1
	sess.CreatedAt = time.UnixMilli(createdMs).UTC()
	sess.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return sess, nil
}

// isUniqueViolation reports whether err is SQLite rejecting a row on a
// UNIQUE index, here the one-open-session-per-member index.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
}
