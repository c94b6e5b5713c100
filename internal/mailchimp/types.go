package mailchimp

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Member statuses
const (
	StatusSubscribed   = "subscribed"
	StatusUnsubscribed = "unsubscribed"
	StatusCleaned      = "cleaned"
	StatusPending      = "pending"
	StatusArchived     = "archived"
)

// Batch statuses
const (
	BatchPending    = "pending"
	BatchPreprocess = "preprocessing"
	BatchStarted    = "started"
	BatchFinalizing = "finalizing"
	BatchFinished   = "finished"
)

// Merge field tags used for names
const (
	MergeFirstName = "FNAME"
	MergeLastName  = "LNAME"
	MergeFullName  = "NAME"
)

// SubscriberHash returns the member id used in member URLs: the hex md5 of
// the lower-cased email.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Member is a list member as returned by the members endpoints.
type Member struct {
	ID           string                 `json:"id,omitempty"`
	EmailAddress string                 `json:"email_address"`
	Status       string                 `json:"status,omitempty"`
	FullName     string                 `json:"full_name,omitempty"`
	MergeFields  map[string]interface{} `json:"merge_fields,omitempty"`
	Interests    map[string]bool        `json:"interests,omitempty"`
	ListID       string                 `json:"list_id,omitempty"`
}

// MergeString returns a merge field as a trimmed string.
func (m Member) MergeString(tag string) string {
	v, ok := m.MergeFields[tag]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// MembersPage is one page of GET /lists/{id}/members.
type MembersPage struct {
	Members    []Member `json:"members"`
	ListID     string   `json:"list_id"`
	TotalItems int      `json:"total_items"`
}

// MemberUpsert is the body of PUT /lists/{id}/members/{hash}. Empty fields
// are omitted so an update only touches what changed.
type MemberUpsert struct {
	EmailAddress string            `json:"email_address"`
	StatusIfNew  string            `json:"status_if_new,omitempty"`
	Status       string            `json:"status,omitempty"`
	MergeFields  map[string]string `json:"merge_fields,omitempty"`
	Interests    map[string]bool   `json:"interests,omitempty"`
}

// StatusUpdate is the body of PATCH /lists/{id}/members/{hash}.
type StatusUpdate struct {
	Status string `json:"status"`
}

// Operation is one entry of a batch request.
type Operation struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Params      map[string]string `json:"params,omitempty"`
	Body        string            `json:"body,omitempty"`
	OperationID string            `json:"operation_id,omitempty"`
}

// BatchRequest is the body of POST /batches.
type BatchRequest struct {
	Operations []Operation `json:"operations"`
}

// Batch is the status document of a submitted batch.
type Batch struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	TotalOperations    int    `json:"total_operations"`
	FinishedOperations int    `json:"finished_operations"`
	ErroredOperations  int    `json:"errored_operations"`
	SubmittedAt        string `json:"submitted_at,omitempty"`
	CompletedAt        string `json:"completed_at,omitempty"`
	ResponseBodyURL    string `json:"response_body_url,omitempty"`
}

// Run modes reported in BatchResult
const (
	ModeNone   = "none"
	ModeSerial = "serial"
	ModeBatch  = "batch"
)

// BatchResult summarises one RunOperations call. Per-operation outcomes of
// a remote batch are not inspected, so Failed only counts serial failures.
type BatchResult struct {
	Mode      string `json:"mode"`
	BatchID   string `json:"batch_id,omitempty"`
	Submitted int    `json:"submitted"`
	Failed    int    `json:"failed"`
	Errored   int    `json:"errored"` // errored_operations as reported by the batch
}

// Add folds another result into r.
func (r *BatchResult) Add(o BatchResult) {
	if r.Mode == "" || r.Mode == ModeNone {
		r.Mode = o.Mode
	} else if o.Mode != ModeNone && o.Mode != r.Mode {
		r.Mode = "mixed"
	}
	if o.BatchID != "" {
		r.BatchID = o.BatchID
	}
	r.Submitted += o.Submitted
	r.Failed += o.Failed
	r.Errored += o.Errored
}

// List is an audience as returned by GET /lists.
type List struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stats struct {
		MemberCount int `json:"member_count"`
	} `json:"stats"`
}

// InterestCategory groups interests within a list.
type InterestCategory struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Interest is one selectable interest of a category.
type Interest struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

type listsResponse struct {
	Lists      []List `json:"lists"`
	TotalItems int    `json:"total_items"`
}

type categoriesResponse struct {
	Categories []InterestCategory `json:"categories"`
	TotalItems int                `json:"total_items"`
}

type interestsResponse struct {
	Interests  []Interest `json:"interests"`
	TotalItems int        `json:"total_items"`
}
