package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

type MemberStore struct {
	db DBTX
}

func NewMemberStore(db DBTX) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) ResolveMember(ctx context.Context, memberID int64) (types.Member, error) {
	m := types.Member{MemberID: memberID}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, surname FROM members WHERE member_id = $1`, memberID,
	).Scan(&m.Name, &m.Surname)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Member{}, store.ErrNotFound
		}
		return types.Member{}, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (s *MemberStore) UpsertMember(ctx context.Context, m types.Member) error {
	if m.MemberID <= 0 {
		return fmt.Errorf("%w: %d", store.ErrInvalidMemberID, m.MemberID)
	}
	query := `INSERT INTO members (member_id, name, surname)
VALUES ($1, $2, $3)
ON CONFLICT (member_id) DO UPDATE SET name = EXCLUDED.name, surname = EXCLUDED.surname, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, m.MemberID, strings.TrimSpace(m.Name), strings.TrimSpace(m.Surname)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
