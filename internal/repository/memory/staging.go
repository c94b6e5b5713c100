package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/service/listsync"
)

// ErrNoStagingTable is returned when a side is used before Reset.
var ErrNoStagingTable = errors.New("staging table does not exist")

type tables struct {
	sides map[domain.Side][]domain.StagingRecord
}

// StagingStore implements listsync.StagingStore in memory.
type StagingStore struct {
	mu    sync.Mutex
	lists map[string]*tables
}

// NewStagingStore creates an empty store.
func NewStagingStore() *StagingStore {
	return &StagingStore{lists: make(map[string]*tables)}
}

var _ listsync.StagingStore = (*StagingStore)(nil)

func (s *StagingStore) side(listID string, side domain.Side) ([]domain.StagingRecord, error) {
	t, ok := s.lists[listID]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", listID, side, ErrNoStagingTable)
	}
	rows, ok := t.sides[side]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", listID, side, ErrNoStagingTable)
	}
	return rows, nil
}

func (s *StagingStore) Reset(_ context.Context, listID string, side domain.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lists[listID]
	if !ok {
		t = &tables{sides: make(map[domain.Side][]domain.StagingRecord)}
		s.lists[listID] = t
	}
	t.sides[side] = []domain.StagingRecord{}
	return nil
}

func (s *StagingStore) Insert(_ context.Context, listID string, side domain.Side, rows []domain.StagingRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.side(listID, side)
	if err != nil {
		return 0, err
	}
	seen := make(map[[2]string]bool, len(existing))
	for _, r := range existing {
		seen[[2]string{r.Email, r.Hash}] = true
	}
	n := 0
	for _, r := range rows {
		key := [2]string{r.Email, r.Hash}
		if seen[key] {
			continue
		}
		seen[key] = true
		if side == domain.SideCRM {
			r.MatchedContactID = nil
		} else {
			r.ContactID = 0
		}
		existing = append(existing, r)
		n++
	}
	s.lists[listID].sides[side] = existing
	return n, nil
}

func (s *StagingStore) MatchByEmail(_ context.Context, listID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.side(listID, domain.SideList)
	if err != nil {
		return 0, err
	}
	crm, err := s.side(listID, domain.SideCRM)
	if err != nil {
		return 0, err
	}

	lowest := make(map[string]int64)
	for _, c := range crm {
		key := domain.EmailKey(c.Email)
		if id, ok := lowest[key]; !ok || c.ContactID < id {
			lowest[key] = c.ContactID
		}
	}
	n := 0
	for i := range list {
		if list[i].IsMatched() {
			continue
		}
		if id, ok := lowest[domain.EmailKey(list[i].Email)]; ok {
			list[i].MatchedContactID = domain.ContactIDPtr(id)
			n++
		}
	}
	return n, nil
}

func (s *StagingStore) Unmatched(_ context.Context, listID string) ([]domain.StagingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.side(listID, domain.SideList)
	if err != nil {
		return nil, err
	}
	var out []domain.StagingRecord
	for _, r := range list {
		if !r.IsMatched() {
			out = append(out, r)
		}
	}
	sortRows(out)
	return out, nil
}

func (s *StagingStore) SetMatched(_ context.Context, listID string, matches []listsync.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.side(listID, domain.SideList)
	if err != nil {
		return err
	}
	for _, m := range matches {
		for i := range list {
			if list[i].Email == m.Email && list[i].Hash == m.Hash {
				list[i].MatchedContactID = domain.ContactIDPtr(m.ContactID)
			}
		}
	}
	return nil
}

func (s *StagingStore) DeleteDoubles(_ context.Context, listID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.side(listID, domain.SideList)
	if err != nil {
		return 0, err
	}
	crm, err := s.side(listID, domain.SideCRM)
	if err != nil {
		return 0, err
	}

	owners := make(map[string][]int64)
	for _, l := range list {
		if id, ok := l.Matched(); ok {
			key := domain.EmailKey(l.Email)
			owners[key] = append(owners[key], id)
		}
	}
	kept := crm[:0:0]
	n := 0
	for _, c := range crm {
		double := false
		for _, id := range owners[domain.EmailKey(c.Email)] {
			if id != c.ContactID {
				double = true
				break
			}
		}
		if double {
			n++
			continue
		}
		kept = append(kept, c)
	}
	s.lists[listID].sides[domain.SideCRM] = kept
	return n, nil
}

func (s *StagingStore) DeleteInSync(_ context.Context, listID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.side(listID, domain.SideList)
	if err != nil {
		return 0, err
	}
	crm, err := s.side(listID, domain.SideCRM)
	if err != nil {
		return 0, err
	}

	type pairKey struct {
		contactID int64
		hash      string
	}
	crmKeys := make(map[pairKey]bool, len(crm))
	for _, c := range crm {
		crmKeys[pairKey{c.ContactID, c.Hash}] = true
	}
	listKeys := make(map[pairKey]bool)
	keptList := list[:0:0]
	n := 0
	for _, l := range list {
		if id, ok := l.Matched(); ok && crmKeys[pairKey{id, l.Hash}] {
			listKeys[pairKey{id, l.Hash}] = true
			n++
			continue
		}
		keptList = append(keptList, l)
	}
	keptCRM := crm[:0:0]
	for _, c := range crm {
		if !listKeys[pairKey{c.ContactID, c.Hash}] {
			keptCRM = append(keptCRM, c)
		}
	}
	s.lists[listID].sides[domain.SideList] = keptList
	s.lists[listID].sides[domain.SideCRM] = keptCRM
	return n, nil
}

func (s *StagingStore) Rows(_ context.Context, listID string, side domain.Side) ([]domain.StagingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.side(listID, side)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StagingRecord, len(rows))
	copy(out, rows)
	sortRows(out)
	return out, nil
}

func (s *StagingStore) Drop(_ context.Context, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, listID)
	return nil
}

// Exists reports whether any staging table exists for the list.
func (s *StagingStore) Exists(listID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lists[listID]
	return ok
}

func sortRows(rows []domain.StagingRecord) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Email != rows[j].Email {
			return rows[i].Email < rows[j].Email
		}
		return rows[i].Hash < rows[j].Hash
	})
}
