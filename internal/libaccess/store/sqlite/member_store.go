package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/biblioteca/libaccess/internal/db"
	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

type MemberStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewMemberStore(db *sql.DB, writer *dbpkg.Worker) *MemberStore {
	return &MemberStore{db: db, writer: writer}
}

func (s *MemberStore) ResolveMember(ctx context.Context, memberID int64) (types.Member, error) {
	m := types.Member{MemberID: memberID}
	err := s.db.QueryRowContext(ctx, `
SELECT name, surname
FROM members
WHERE member_id = ?;
`, memberID).Scan(&m.Name, &m.Surname)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Member{}, store.ErrNotFound
	}
	if err != nil {
		return types.Member{}, fmt.Errorf("ResolveMember query: %w", err)
	}
	return m, nil
}

// UpsertMember creates the member or refreshes its display name.
func (s *MemberStore) UpsertMember(ctx context.Context, m types.Member) error {
	if m.MemberID <= 0 {
		return fmt.Errorf("UpsertMember: %w: %d", store.ErrInvalidMemberID, m.MemberID)
	}
	ms := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO members(member_id, name, surname, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(member_id) DO UPDATE SET
  name          = excluded.name,
  surname       = excluded.surname,
  updated_at_ms = excluded.updated_at_ms;
`, m.MemberID, strings.TrimSpace(m.Name), strings.TrimSpace(m.Surname), ms, ms); err != nil {
			return fmt.Errorf("UpsertMember: %w", err)
		}
		return nil
	})
}
