package service_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/biblioteca/libaccess/internal/libaccess/service"
	"github.com/biblioteca/libaccess/internal/libaccess/store/memory"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances by step on every read.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type recorder struct {
	mu       sync.Mutex
	checkIn  []string
	checkOut []string
}

func (r *recorder) RecordCheckIn(result string) {
	r.mu.Lock()
	r.checkIn = append(r.checkIn, result)
	r.mu.Unlock()
}

func (r *recorder) RecordCheckOut(result string) {
	r.mu.Lock()
	r.checkOut = append(r.checkOut, result)
	r.mu.Unlock()
}

type fixture struct {
	tracker  *service.AccessTracker
	reports  *service.ReportService
	sessions *memory.Store
	recorder *recorder
	clock    *fakeClock
}

var testMembers = []types.Member{
	{MemberID: 42, Name: "Ada", Surname: "Lovelace"},
	{MemberID: 43, Name: "Grace", Surname: "Hopper"},
	{MemberID: 99, Name: "Alan", Surname: "Turing"},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sessions := memory.New()
	rec := &recorder{}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), step: time.Minute}
	registry := service.NewMemberRegistry(memory.NewMemberDirectory(testMembers...))

	return &fixture{
		tracker: service.NewAccessTracker(registry, sessions,
			service.WithRecorder(rec),
			service.WithLogger(silentLogger()),
			service.WithClock(clock.Now),
		),
		reports:  service.NewReportService(sessions),
		sessions: sessions,
		recorder: rec,
		clock:    clock,
	}
}
