package listsync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/service/listsync"
)

func seed(t *testing.T, h *harness, list, crm []domain.StagingRecord) {
	t.Helper()
	ctx := context.Background()
	for _, side := range []domain.Side{domain.SideList, domain.SideCRM} {
		require.NoError(t, h.store.Reset(ctx, listID, side))
	}
	_, err := h.store.Insert(ctx, listID, domain.SideList, list)
	require.NoError(t, err)
	_, err = h.store.Insert(ctx, listID, domain.SideCRM, crm)
	require.NoError(t, err)
}

func TestReduce_RemovesPairsOnlyWhenHashesMatch(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	news := map[string]bool{newsInterest: true}
	seed(t, h,
		[]domain.StagingRecord{
			stagedRecord("same@x.com", "Ann", "Lee", domain.ContactIDPtr(1), news),
			stagedRecord("diff@x.com", "Bob", "Stone", domain.ContactIDPtr(2), news),
			stagedRecord("moved@x.com", "Cy", "Ng", domain.ContactIDPtr(3), nil),
			stagedRecord("open@x.com", "Di", "Po", nil, nil),
		},
		[]domain.StagingRecord{
			crmRecord(1, "same@x.com", "Ann", "Lee", news),
			crmRecord(2, "diff@x.com", "Robert", "Stone", news),
			crmRecord(3, "cy@elsewhere.com", "Cy", "Ng", nil),
			crmRecord(4, "open@x.com", "Di", "Po", nil),
		})

	res, err := h.svc.Reduce(context.Background(), h.cfg, domain.DirectionPull)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Doubles)
	assert.Equal(t, 2, res.InSync, "pairs 1 and 3 agree; email is not part of the hash")

	list, err := h.store.Rows(context.Background(), listID, domain.SideList)
	require.NoError(t, err)
	crm, err := h.store.Rows(context.Background(), listID, domain.SideCRM)
	require.NoError(t, err)
	var listEmails, crmEmails []string
	for _, r := range list {
		listEmails = append(listEmails, r.Email)
	}
	for _, r := range crm {
		crmEmails = append(crmEmails, r.Email)
	}
	assert.Equal(t, []string{"diff@x.com", "open@x.com"}, listEmails)
	assert.Equal(t, []string{"diff@x.com", "open@x.com"}, crmEmails)
}

func TestReduce_DoublesOnlyInPush(t *testing.T) {
	for _, tt := range []struct {
		dir         domain.Direction
		wantDoubles int
		wantCRMRows int
	}{
		{domain.DirectionPush, 1, 1},
		{domain.DirectionPull, 0, 2},
	} {
		h := newHarness(t, listsync.Options{})
		seed(t, h,
			[]domain.StagingRecord{stagedRecord("shared@x.com", "A", "B", domain.ContactIDPtr(1), nil)},
			[]domain.StagingRecord{
				crmRecord(1, "shared@x.com", "A", "Changed", nil),
				crmRecord(2, "SHARED@x.com", "Other", "Person", nil),
			})

		res, err := h.svc.Reduce(context.Background(), h.cfg, tt.dir)
		require.NoError(t, err)
		assert.Equal(t, tt.wantDoubles, res.Doubles, tt.dir)

		crm, err := h.store.Rows(context.Background(), listID, domain.SideCRM)
		require.NoError(t, err)
		assert.Len(t, crm, tt.wantCRMRows, tt.dir)
	}
}
