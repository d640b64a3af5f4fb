package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblioteca/libaccess/internal/libaccess/store"
	sqlitestore "github.com/biblioteca/libaccess/internal/libaccess/store/sqlite"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

func newSessionStore(t *testing.T) *sqlitestore.SessionStore {
	t.Helper()
	conn := openTestDB(t)
	return sqlitestore.NewSessionStore(conn, newTestWriter(t, conn))
}

func open(memberID int64, entry time.Time, qr string) types.AccessSession {
	return types.AccessSession{
		MemberID:      memberID,
		MemberName:    "Ada",
		MemberSurname: "Lovelace",
		EntryTime:     entry,
		QRCode:        qr,
		AccessMethod:  types.AccessMethodQRMobile,
	}
}

func TestSessionStore_CreateAndFind(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()
	entry := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	created, err := s.Create(ctx, open(42, entry, "BIBLIO-1A2B3C4D"))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.True(t, created.Active)
	assert.Nil(t, created.ExitTime)
	assert.Equal(t, entry, created.EntryTime)
	assert.Equal(t, "Ada", created.MemberName)
	assert.Equal(t, types.AccessMethodQRMobile, created.AccessMethod)

	got, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	openSess, ok, err := s.FindOpenByMember(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, openSess.ID)

	_, ok, err = s.FindOpenByMember(ctx, 43)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionStore_UniqueOpenSessionBackstop(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()
	entry := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := s.Create(ctx, open(42, entry, "Q1"))
	require.NoError(t, err)

	_, err = s.Create(ctx, open(42, entry.Add(time.Second), "Q2"))
	assert.ErrorIs(t, err, store.ErrOpenSessionExists)

	n, err := s.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSessionStore_ConcurrentCreates_OneWins(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()
	entry := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Create(ctx, open(7, entry, "Q")); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestSessionStore_Close(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()
	entry := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	exit := entry.Add(90 * time.Minute)

	sess, err := s.Create(ctx, open(42, entry, "IN"))
	require.NoError(t, err)

	closed, err := s.Close(ctx, sess.ID, exit, "OUT")
	require.NoError(t, err)
	require.NotNil(t, closed.ExitTime)
	assert.Equal(t, exit, *closed.ExitTime)
	assert.Equal(t, "OUT", closed.ExitQRCode)
	assert.False(t, closed.Active)

	_, err = s.Close(ctx, sess.ID, exit.Add(time.Hour), "OUT2")
	assert.ErrorIs(t, err, store.ErrSessionNotOpen)

	_, err = s.Close(ctx, 9999, exit, "OUT")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The member may open a new session once the previous one is closed.
	_, err = s.Create(ctx, open(42, exit.Add(time.Minute), "IN2"))
	require.NoError(t, err)
}

func TestSessionStore_Lists(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a, err := s.Create(ctx, open(1, base, "A"))
	require.NoError(t, err)
	_, err = s.Close(ctx, a.ID, base.Add(time.Hour), "A-out")
	require.NoError(t, err)
	_, err = s.Create(ctx, open(1, base.Add(2*time.Hour), "B"))
	require.NoError(t, err)
	_, err = s.Create(ctx, open(2, base.Add(3*time.Hour), "C"))
	require.NoError(t, err)

	hist, err := s.FindByMember(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "B", hist[0].QRCode)
	assert.Equal(t, "A", hist[1].QRCode)

	none, err := s.FindByMember(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	inside, err := s.FindAllOpen(ctx)
	require.NoError(t, err)
	require.Len(t, inside, 2)
	assert.Equal(t, int64(2), inside[0].MemberID)

	rng, err := s.FindByRange(ctx, base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, rng, 2)

	rng, err = s.FindByRange(ctx, base.Add(4*time.Hour), base.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, rng)

	byCode, err := s.FindByQRCode(ctx, "A-out")
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	assert.Equal(t, a.ID, byCode[0].ID)

	recent, err := s.FindRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	all, err := s.FindRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSessionStore_FindByRange_SubMillisecondBounds(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()
	entry := time.Date(2026, 3, 1, 9, 0, 0, 10*int(time.Millisecond), time.UTC)

	_, err := s.Create(ctx, open(42, entry, "Q"))
	require.NoError(t, err)

	rng, err := s.FindByRange(ctx, entry.Add(500*time.Microsecond), entry.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, rng, "entry before start must be excluded")

	rng, err = s.FindByRange(ctx, entry.Add(-500*time.Microsecond), entry.Add(500*time.Microsecond))
	require.NoError(t, err)
	assert.Len(t, rng, 1)

	rng, err = s.FindByRange(ctx, entry, entry)
	require.NoError(t, err)
	assert.Len(t, rng, 1, "both bounds are inclusive")
}

func TestSessionStore_Delete(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, open(5, time.Now().UTC(), "Q"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, sess.ID))
	assert.ErrorIs(t, s.Delete(ctx, sess.ID), store.ErrNotFound)

	_, ok, err := s.FindOpenByMember(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemberStore_UpsertAndResolve(t *testing.T) {
	conn := openTestDB(t)
	ms := sqlitestore.NewMemberStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	_, err := ms.ResolveMember(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, ms.UpsertMember(ctx, types.Member{MemberID: 42, Name: " Ada ", Surname: "Lovelace"}))
	m, err := ms.ResolveMember(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.Member{MemberID: 42, Name: "Ada", Surname: "Lovelace"}, m)

	require.NoError(t, ms.UpsertMember(ctx, types.Member{MemberID: 42, Name: "Augusta", Surname: "King"}))
	m, err = ms.ResolveMember(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Augusta", m.Name)

	assert.ErrorIs(t, ms.UpsertMember(ctx, types.Member{MemberID: 0}), store.ErrInvalidMemberID)
}
