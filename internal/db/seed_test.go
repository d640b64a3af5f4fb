package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

type upsertSpy struct {
	got  []types.Member
	fail int64
}

func (u *upsertSpy) UpsertMember(_ context.Context, m types.Member) error {
	if m.MemberID == u.fail {
		return errors.New("disk full")
	}
	u.got = append(u.got, m)
	return nil
}

func TestSeedDev(t *testing.T) {
	spy := &upsertSpy{}
	members := []types.Member{
		{MemberID: 42, Name: "Ada", Surname: "Lovelace"},
		{MemberID: 43, Name: "Grace", Surname: "Hopper"},
	}

	require.NoError(t, SeedDev(context.Background(), spy, members))
	assert.Equal(t, members, spy.got)
}

func TestSeedDev_StopsOnFirstError(t *testing.T) {
	spy := &upsertSpy{fail: 42}
	err := SeedDev(context.Background(), spy, []types.Member{{MemberID: 42}, {MemberID: 43}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed member 42")
	assert.Empty(t, spy.got)
}
