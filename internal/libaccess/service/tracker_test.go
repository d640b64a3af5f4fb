package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblioteca/libaccess/internal/libaccess/service"
	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/store/memory"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

// ── Scenarios ────────────────────────────────────────────────────────────────

func TestCheckIn_ThenSecondCheckInRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.tracker.CheckIn(ctx, 42, "Q1")
	require.NoError(t, err)
	assert.True(t, sess.Active)
	assert.Nil(t, sess.ExitTime)
	assert.Equal(t, "Q1", sess.QRCode)
	assert.Equal(t, "Ada", sess.MemberName)
	assert.Equal(t, "Lovelace", sess.MemberSurname)
	assert.Equal(t, types.AccessMethodQRMobile, sess.AccessMethod)

	_, err = f.tracker.CheckIn(ctx, 42, "Q2")
	assert.ErrorIs(t, err, service.ErrAlreadyInside)

	assert.Equal(t, []string{service.ResultOK, service.ResultAlreadyInside}, f.recorder.checkIn)
}

func TestCheckOut_ClosesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.tracker.CheckIn(ctx, 42, "Q1")
	require.NoError(t, err)

	out, err := f.tracker.CheckOut(ctx, 42, "Q3")
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	require.NotNil(t, out.ExitTime)
	assert.False(t, out.Active)
	assert.Equal(t, "Q3", out.ExitQRCode)
	assert.Equal(t, "Q1", out.QRCode)

	inside, err := f.tracker.IsInside(ctx, 42)
	require.NoError(t, err)
	assert.False(t, inside)
}

func TestCheckOut_NoOpenSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.CheckOut(context.Background(), 99, "Q1")
	assert.ErrorIs(t, err, service.ErrNoActiveSession)
	assert.Equal(t, []string{service.ResultNoActiveSession}, f.recorder.checkOut)
}

func TestReportBetween_InvalidRange(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	_, err := f.reports.ReportBetween(context.Background(), t1, t0)
	assert.ErrorIs(t, err, service.ErrInvalidRange)
}

func TestHistory_ReentrySameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.CheckIn(ctx, 42, "Q1")
	require.NoError(t, err)
	_, err = f.tracker.CheckOut(ctx, 42, "Q2")
	require.NoError(t, err)
	second, err := f.tracker.CheckIn(ctx, 42, "Q3")
	require.NoError(t, err)

	hist, err := f.reports.HistoryFor(ctx, 42)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, second.ID, hist[0].ID)
	assert.True(t, hist[0].EntryTime.After(hist[1].EntryTime))
	assert.True(t, hist[0].Active)
	assert.False(t, hist[1].Active)

	inside, err := f.tracker.IsInside(ctx, 42)
	require.NoError(t, err)
	assert.True(t, inside)
}

// ── Properties ───────────────────────────────────────────────────────────────

func TestCheckIn_ConcurrentSameMember_ExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 50
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.tracker.CheckIn(ctx, 42, "Q")
		}(i)
	}
	wg.Wait()

	var ok, inside int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, service.ErrAlreadyInside):
			inside++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, inside)

	open, err := f.reports.CurrentlyInside(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCheckIn_DistinctMembersIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{42, 43} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = f.tracker.CheckIn(ctx, id, "Q")
		}(i, id)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	n, err := f.reports.OccupancyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCheckOut_Twice_DoesNotChangeExitTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.CheckIn(ctx, 42, "Q1")
	require.NoError(t, err)
	out, err := f.tracker.CheckOut(ctx, 42, "Q2")
	require.NoError(t, err)

	_, err = f.tracker.CheckOut(ctx, 42, "Q3")
	assert.ErrorIs(t, err, service.ErrNoActiveSession)

	again, err := f.reports.Session(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, *out.ExitTime, *again.ExitTime)
	assert.Equal(t, "Q2", again.ExitQRCode)
}

func TestRoundTrip_ExitStrictlyAfterEntry(t *testing.T) {
	sessions := memory.New()
	frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tracker := service.NewAccessTracker(
		service.NewMemberRegistry(memory.NewMemberDirectory(testMembers...)),
		sessions,
		service.WithLogger(silentLogger()),
		service.WithClock(func() time.Time { return frozen }),
	)
	ctx := context.Background()

	_, err := tracker.CheckIn(ctx, 42, "Q1")
	require.NoError(t, err)
	out, err := tracker.CheckOut(ctx, 42, "Q2")
	require.NoError(t, err)

	hist, err := sessions.FindByMember(ctx, 42)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.False(t, out.Active)
	assert.True(t, out.EntryTime.Before(*out.ExitTime))
}

// ── Validation and lookups ───────────────────────────────────────────────────

func TestCheckIn_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.CheckIn(ctx, 0, "Q")
	assert.ErrorIs(t, err, service.ErrInvalidMemberID)

	_, err = f.tracker.CheckIn(ctx, 42, "   ")
	assert.ErrorIs(t, err, service.ErrInvalidQRCode)

	_, err = f.tracker.CheckIn(ctx, 7, "Q")
	assert.ErrorIs(t, err, service.ErrMemberNotFound)

	assert.Equal(t,
		[]string{service.ResultInvalid, service.ResultInvalid, service.ResultMemberNotFound},
		f.recorder.checkIn)

	n, err := f.sessions.CountOpen(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rejections must not write")
}

func TestCheckOut_AcceptsBlankCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.CheckIn(ctx, 42, "Q1")
	require.NoError(t, err)
	out, err := f.tracker.CheckOut(ctx, 42, "")
	require.NoError(t, err)
	assert.Empty(t, out.ExitQRCode)
}

func TestIsInside_InvalidMember(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.IsInside(context.Background(), -1)
	assert.ErrorIs(t, err, service.ErrInvalidMemberID)
}

// ── Storage faults ───────────────────────────────────────────────────────────

type failingStore struct {
	store.SessionStore
	err error
}

func (f failingStore) FindOpenByMember(context.Context, int64) (types.AccessSession, bool, error) {
	return types.AccessSession{}, false, f.err
}

// raceStore reports no open session, then rejects Create as the unique
// index would when another writer slipped in.
type raceStore struct {
	store.SessionStore
}

func (raceStore) FindOpenByMember(context.Context, int64) (types.AccessSession, bool, error) {
	return types.AccessSession{}, false, nil
}

func (raceStore) Create(context.Context, types.AccessSession) (types.AccessSession, error) {
	return types.AccessSession{}, store.ErrOpenSessionExists
}

func TestTracker_StorageErrorsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")
	rec := &recorder{}
	tracker := service.NewAccessTracker(
		service.NewMemberRegistry(memory.NewMemberDirectory(testMembers...)),
		failingStore{SessionStore: memory.New(), err: boom},
		service.WithRecorder(rec),
		service.WithLogger(silentLogger()),
	)
	ctx := context.Background()

	_, err := tracker.CheckIn(ctx, 42, "Q")
	assert.ErrorIs(t, err, service.ErrStorage)
	assert.ErrorIs(t, err, boom)

	_, err = tracker.CheckOut(ctx, 42, "Q")
	assert.ErrorIs(t, err, service.ErrStorage)

	_, err = tracker.IsInside(ctx, 42)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{service.ResultError}, rec.checkIn)
	assert.Equal(t, []string{service.ResultError}, rec.checkOut)
}

func TestCheckIn_StoreBackstopMapsToAlreadyInside(t *testing.T) {
	tracker := service.NewAccessTracker(
		service.NewMemberRegistry(memory.NewMemberDirectory(testMembers...)),
		raceStore{SessionStore: memory.New()},
		service.WithLogger(silentLogger()),
	)

	_, err := tracker.CheckIn(context.Background(), 42, "Q")
	assert.ErrorIs(t, err, service.ErrAlreadyInside)
}

func TestResultFor(t *testing.T) {
	cases := map[error]string{
		nil:                         service.ResultOK,
		service.ErrAlreadyInside:    service.ResultAlreadyInside,
		service.ErrNoActiveSession:  service.ResultNoActiveSession,
		service.ErrMemberNotFound:   service.ResultMemberNotFound,
		service.ErrInvalidQRCode:    service.ResultInvalid,
		service.ErrInvalidMemberID:  service.ResultInvalid,
		errors.New("anything else"): service.ResultError,
	}
	for err, want := range cases {
		assert.Equal(t, want, service.ResultFor(err), "%v", err)
	}
}
