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

// Result labels reported to the Recorder.
const (
	ResultOK              = "ok"
	ResultAlreadyInside   = "already_inside"
	ResultNoActiveSession = "no_active_session"
	ResultMemberNotFound  = "member_not_found"
	ResultInvalid         = "invalid"
	ResultError           = "error"
)

// Recorder receives the outcome of every check-in and check-out.
type Recorder interface {
	RecordCheckIn(result string)
	RecordCheckOut(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCheckIn(string)  {}
func (nopRecorder) RecordCheckOut(string) {}

// AccessTracker owns the open/closed lifecycle of access sessions. A member
// has at most one open session; check-in and check-out for the same member
// are serialised, different members never wait on each other.
type AccessTracker struct {
	members  *MemberRegistry
	sessions store.SessionStore
	locks    *memberLocks
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

type TrackerOption func(*AccessTracker)

func WithRecorder(r Recorder) TrackerOption {
	return func(t *AccessTracker) {
		if r != nil {
			t.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *AccessTracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *AccessTracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewAccessTracker(members *MemberRegistry, sessions store.SessionStore, opts ...TrackerOption) *AccessTracker {
	t := &AccessTracker{
		members:  members,
		sessions: sessions,
		locks:    newMemberLocks(),
		recorder: nopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CheckIn opens a session for memberID. It fails with ErrAlreadyInside if
// the member already has one.
func (t *AccessTracker) CheckIn(ctx context.Context, memberID int64, qrCode string) (types.AccessSession, error) {
	sess, err := t.checkIn(ctx, memberID, qrCode)
	t.recorder.RecordCheckIn(ResultFor(err))
	t.logOutcome(ctx, types.ActionCheckIn, memberID, sess, err)
	return sess, err
}

func (t *AccessTracker) checkIn(ctx context.Context, memberID int64, qrCode string) (types.AccessSession, error) {
	if memberID <= 0 {
		return types.AccessSession{}, fmt.Errorf("%w: %d", ErrInvalidMemberID, memberID)
	}
	qrCode = strings.TrimSpace(qrCode)
	if qrCode == "" {
		return types.AccessSession{}, ErrInvalidQRCode
	}

	member, err := t.members.Resolve(ctx, memberID)
	if err != nil {
		return types.AccessSession{}, err
	}

	unlock := t.locks.lock(memberID)
	defer unlock()

	_, open, err := t.sessions.FindOpenByMember(ctx, memberID)
	if err != nil {
		return types.AccessSession{}, storageErr("find open session", err)
	}
	if open {
		return types.AccessSession{}, fmt.Errorf("%w: member %d", ErrAlreadyInside, memberID)
	}

	created, err := t.sessions.Create(ctx, types.AccessSession{
		MemberID:      memberID,
		MemberName:    member.Name,
		MemberSurname: member.Surname,
		EntryTime:     t.stamp(),
		QRCode:        qrCode,
		AccessMethod:  types.AccessMethodQRMobile,
		Active:        true,
	})
	if errors.Is(err, store.ErrOpenSessionExists) {
		return types.AccessSession{}, fmt.Errorf("%w: member %d", ErrAlreadyInside, memberID)
	}
	if err != nil {
		return types.AccessSession{}, storageErr("create session", err)
	}
	return created, nil
}

// CheckOut closes the member's open session. qrCode is recorded as the
// exit code and is not compared with the code used at check-in.
func (t *AccessTracker) CheckOut(ctx context.Context, memberID int64, qrCode string) (types.AccessSession, error) {
	sess, err := t.checkOut(ctx, memberID, qrCode)
	t.recorder.RecordCheckOut(ResultFor(err))
	t.logOutcome(ctx, types.ActionCheckOut, memberID, sess, err)
	return sess, err
}

func (t *AccessTracker) checkOut(ctx context.Context, memberID int64, qrCode string) (types.AccessSession, error) {
	if memberID <= 0 {
		return types.AccessSession{}, fmt.Errorf("%w: %d", ErrInvalidMemberID, memberID)
	}

	unlock := t.locks.lock(memberID)
	defer unlock()

	open, ok, err := t.sessions.FindOpenByMember(ctx, memberID)
	if err != nil {
		return types.AccessSession{}, storageErr("find open session", err)
	}
	if !ok {
		return types.AccessSession{}, fmt.Errorf("%w: member %d", ErrNoActiveSession, memberID)
	}

	// Exit must land strictly after entry at storage (millisecond) resolution.
	exit := t.stamp()
	if !exit.After(open.EntryTime) {
		exit = open.EntryTime.Add(time.Millisecond)
	}

	closed, err := t.sessions.Close(ctx, open.ID, exit, strings.TrimSpace(qrCode))
	if errors.Is(err, store.ErrSessionNotOpen) || errors.Is(err, store.ErrNotFound) {
		return types.AccessSession{}, fmt.Errorf("%w: member %d", ErrNoActiveSession, memberID)
	}
	if err != nil {
		return types.AccessSession{}, storageErr("close session", err)
	}
	return closed, nil
}

// IsInside reports whether memberID has an open session.
func (t *AccessTracker) IsInside(ctx context.Context, memberID int64) (bool, error) {
	if memberID <= 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidMemberID, memberID)
	}
	_, ok, err := t.sessions.FindOpenByMember(ctx, memberID)
	if err != nil {
		return false, storageErr("find open session", err)
	}
	return ok, nil
}

func (t *AccessTracker) stamp() time.Time {
	return t.now().UTC().Truncate(time.Millisecond)
}

func (t *AccessTracker) logOutcome(ctx context.Context, action types.Action, memberID int64, sess types.AccessSession, err error) {
	switch result := ResultFor(err); result {
	case ResultOK:
		t.logger.InfoContext(ctx, "access session updated",
			"action", action, "member_id", memberID, "session_id", sess.ID)
	case ResultError:
		t.logger.ErrorContext(ctx, "access session update failed",
			"action", action, "member_id", memberID, "error", err)
	default:
		t.logger.InfoContext(ctx, "access request rejected",
			"action", action, "member_id", memberID, "result", result, "error", err)
	}
}

// ResultFor maps an AccessTracker error to its Recorder label.
func ResultFor(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrAlreadyInside):
		return ResultAlreadyInside
	case errors.Is(err, ErrNoActiveSession):
		return ResultNoActiveSession
	case errors.Is(err, ErrMemberNotFound):
		return ResultMemberNotFound
	case errors.Is(err, ErrInvalidMemberID), errors.Is(err, ErrInvalidQRCode):
		return ResultInvalid
	default:
		return ResultError
	}
}
