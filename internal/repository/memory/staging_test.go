package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/service/listsync"
)

func TestStagingStore_InsertIgnoresDuplicates(t *testing.T) {
	s := NewStagingStore()
	ctx := context.Background()
	require.NoError(t, s.Reset(ctx, "L1", domain.SideList))

	a := domain.NewStagingRecord("a@x.com", "A", "B", domain.Interests{})
	renamed := domain.NewStagingRecord("a@x.com", "A", "C", domain.Interests{})
	n, err := s.Insert(ctx, "L1", domain.SideList, []domain.StagingRecord{a, a, renamed})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Insert(ctx, "L1", domain.SideList, []domain.StagingRecord{a})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStagingStore_RequiresReset(t *testing.T) {
	s := NewStagingStore()
	_, err := s.Rows(context.Background(), "L1", domain.SideCRM)
	assert.True(t, errors.Is(err, ErrNoStagingTable))
	assert.NoError(t, s.Drop(context.Background(), "L1"))
}

func TestStagingStore_MatchAndSetMatched(t *testing.T) {
	s := NewStagingStore()
	ctx := context.Background()
	require.NoError(t, s.Reset(ctx, "L1", domain.SideList))
	require.NoError(t, s.Reset(ctx, "L1", domain.SideCRM))

	listRows := []domain.StagingRecord{
		domain.NewStagingRecord("A@x.com", "", "", domain.Interests{}),
		domain.NewStagingRecord("b@x.com", "", "", domain.Interests{}),
	}
	crm7 := domain.NewStagingRecord("a@x.com", "", "", domain.Interests{})
	crm7.ContactID = 7
	crm3 := domain.NewStagingRecord("a@X.COM", "x", "", domain.Interests{})
	crm3.ContactID = 3
	_, err := s.Insert(ctx, "L1", domain.SideList, listRows)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "L1", domain.SideCRM, []domain.StagingRecord{crm7, crm3})
	require.NoError(t, err)

	n, err := s.MatchByEmail(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unmatched, err := s.Unmatched(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "b@x.com", unmatched[0].Email)

	require.NoError(t, s.SetMatched(ctx, "L1", []listsync.Match{{Email: "b@x.com", Hash: unmatched[0].Hash, ContactID: 0}}))

	rows, err := s.Rows(ctx, "L1", domain.SideList)
	require.NoError(t, err)
	id, ok := rows[0].Matched()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id, "lowest contact id wins")
	id, ok = rows[1].Matched()
	assert.True(t, ok)
	assert.Equal(t, int64(0), id)
}
