package listsync_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/mailchimp/mailchimptest"
	"github.com/ignite/listsync/internal/repository/memory"
	"github.com/ignite/listsync/internal/service/listsync"
)

const (
	listID         = "L1"
	membershipID   = int64(100)
	newsGroupID    = int64(101)
	eventsGroupID  = int64(102)
	newsInterest   = "i-news"
	eventsInterest = "i-events"
)

func testMappings() []domain.InterestMapping {
	return []domain.InterestMapping{
		{GroupID: membershipID, ListID: listID},
		{GroupID: newsGroupID, ListID: listID, InterestID: newsInterest, ListMayUpdateCRM: true},
		{GroupID: eventsGroupID, ListID: listID, InterestID: eventsInterest, ListMayUpdateCRM: false},
	}
}

type harness struct {
	crm        *memory.CRM
	store      *memory.StagingStore
	quarantine *memory.QuarantineLog
	srv        *mailchimptest.Server
	client     *mailchimp.Client
	svc        *listsync.Service
	cfg        domain.ListConfig
}

func newHarness(t *testing.T, opts listsync.Options) *harness {
	t.Helper()
	h := &harness{
		crm:        memory.NewCRM(),
		store:      memory.NewStagingStore(),
		quarantine: memory.NewQuarantineLog(),
		srv:        mailchimptest.New(),
	}
	t.Cleanup(h.srv.Close)
	h.srv.AddList(listID, "main")

	h.client = mailchimp.NewClient(mailchimp.Config{
		APIKey:          "test-us1",
		BaseURL:         h.srv.URL,
		PollInterval:    time.Millisecond,
		SerialThreshold: 10,
	})
	h.client.SetHTTPClient(http.DefaultClient)

	cfg, err := listsync.ListConfig(listID, testMappings())
	require.NoError(t, err)
	h.cfg = cfg
	h.svc = listsync.NewService(h.crm, h.store, h.quarantine, h.client, opts)
	return h
}

// collect runs the collection and matching steps.
func (h *harness) collectAndMatch(t *testing.T, dir domain.Direction) listsync.MatchResult {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.CollectList(ctx, h.cfg, dir)
	require.NoError(t, err)
	_, err = h.svc.CollectCRM(ctx, h.cfg, dir)
	require.NoError(t, err)
	res, err := h.svc.Match(ctx, h.cfg)
	require.NoError(t, err)
	return res
}

func (h *harness) subscribe(email, first, last string, interests map[string]bool) {
	h.srv.PutMember(listID, mailchimptest.Member{
		Email:       email,
		MergeFields: map[string]string{"FNAME": first, "LNAME": last},
		Interests:   interests,
	})
}

// stagedList seeds the list side of the store directly.
func stagedRecord(email, first, last string, matched *int64, interests map[string]bool) domain.StagingRecord {
	r := domain.NewStagingRecord(email, first, last, domain.NewInterests(interests))
	r.MatchedContactID = matched
	return r
}

func crmRecord(contactID int64, email, first, last string, interests map[string]bool) domain.StagingRecord {
	r := domain.NewStagingRecord(email, first, last, domain.NewInterests(interests))
	r.ContactID = contactID
	return r
}

// recordingAPI captures operation chunks instead of sending them.
type recordingAPI struct {
	members []mailchimp.Member
	chunks  [][]mailchimp.Operation
}

func (r *recordingAPI) EachSubscribedMember(_ context.Context, _ string, _ int, fn func(mailchimp.Member) error) error {
	for _, m := range r.members {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (r *recordingAPI) RunOperations(_ context.Context, ops []mailchimp.Operation) (mailchimp.BatchResult, error) {
	r.chunks = append(r.chunks, append([]mailchimp.Operation(nil), ops...))
	return mailchimp.BatchResult{Mode: mailchimp.ModeSerial, Submitted: len(ops)}, nil
}
