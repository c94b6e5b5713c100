package listsync

import "github.com/ignite/listsync/internal/domain"

// listIndex groups resolved list rows by matched contact. Rows matched to
// 0 (new contacts) and unresolved rows are not indexed.
func listIndex(rows []domain.StagingRecord) map[int64][]int {
	idx := make(map[int64][]int)
	for i, r := range rows {
		if id, ok := r.Matched(); ok && id != 0 {
			idx[id] = append(idx[id], i)
		}
	}
	return idx
}

// partnerIndex picks the list row for a contact from candidates, skipping
// rows already taken. A row with the same email wins; otherwise the first
// by email order. Returns -1 when nothing is left.
func partnerIndex(rows []domain.StagingRecord, candidates []int, email string, taken []bool) int {
	first := -1
	key := domain.EmailKey(email)
	for _, i := range candidates {
		if taken[i] {
			continue
		}
		if domain.EmailKey(rows[i].Email) == key {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

// emailSet collects the email keys of rows accepted by keep.
func emailSet(rows []domain.StagingRecord, keep func(domain.StagingRecord) bool) map[string]bool {
	set := make(map[string]bool)
	for _, r := range rows {
		if keep == nil || keep(r) {
			set[domain.EmailKey(r.Email)] = true
		}
	}
	return set
}

func unresolved(r domain.StagingRecord) bool { return !r.IsMatched() }
