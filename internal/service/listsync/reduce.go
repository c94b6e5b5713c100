package listsync

import (
	"context"
	"fmt"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/pkg/logger"
)

// Reduce removes staging rows that need no action. In push mode CRM rows
// whose email is held by a list row matched to another contact are removed
// first, so two CRM contacts sharing one subscriber cannot take turns
// overwriting it.
func (s *Service) Reduce(ctx context.Context, cfg domain.ListConfig, dir domain.Direction) (ReduceResult, error) {
	var res ReduceResult
	listID := cfg.ListID()

	if dir == domain.DirectionPush {
		n, err := s.store.DeleteDoubles(ctx, listID)
		if err != nil {
			return res, fmt.Errorf("delete doubles: %w", err)
		}
		res.Doubles = n
	}

	n, err := s.store.DeleteInSync(ctx, listID)
	if err != nil {
		return res, fmt.Errorf("delete in-sync pairs: %w", err)
	}
	res.InSync = n

	logger.Info("staging reduced", "list_id", listID, "doubles", res.Doubles, "in_sync", res.InSync)
	return res, nil
}
