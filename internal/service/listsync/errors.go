package listsync

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for the list sync service layer.
var (
	ErrUnknownStep = errors.New("unknown sync step")
)

// ConfigurationError means a list cannot be synced with its current
// mappings. It is raised before any remote call is made.
type ConfigurationError struct {
	ListID string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("list %s is misconfigured: %v", e.ListID, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DuplicateContactError means a subscriber's email resolves to several CRM
// contacts and no narrowing rule picks one. It is recorded per row and never
// returned from the matcher.
type DuplicateContactError struct {
	Email      string
	Candidates []int64
}

func (e *DuplicateContactError) Error() string {
	ids := make([]string, len(e.Candidates))
	for i, id := range e.Candidates {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%d CRM contacts share this email and none is preferred: %s",
		len(e.Candidates), strings.Join(ids, ","))
}
