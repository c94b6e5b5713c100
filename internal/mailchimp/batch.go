package mailchimp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ignite/listsync/internal/pkg/logger"
)

// NewUpsertOperation builds a PUT of body at the hash of email.
func NewUpsertOperation(listID, email string, body MemberUpsert) (Operation, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Operation{}, fmt.Errorf("encode upsert for list %s: %w", listID, err)
	}
	return Operation{
		Method: http.MethodPut,
		Path:   MemberPath(listID, email),
		Body:   string(raw),
	}, nil
}

// NewUnsubscribeOperation builds a PATCH setting email's status to unsubscribed.
func NewUnsubscribeOperation(listID, email string) Operation {
	raw, _ := json.Marshal(StatusUpdate{Status: StatusUnsubscribed})
	return Operation{
		Method: http.MethodPatch,
		Path:   MemberPath(listID, email),
		Body:   string(raw),
	}
}

// SubmitBatch posts operations as one batch.
func (c *Client) SubmitBatch(ctx context.Context, ops []Operation) (*Batch, error) {
	resp, err := c.Call(ctx, http.MethodPost, "/batches", BatchRequest{Operations: ops})
	if err != nil {
		return nil, err
	}
	var b Batch
	if err := resp.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to parse batch response: %w", err)
	}
	if b.ID == "" {
		return nil, fmt.Errorf("batch response has no id")
	}
	return &b, nil
}

// GetBatch fetches the status of a batch.
func (c *Client) GetBatch(ctx context.Context, id string) (*Batch, error) {
	var b Batch
	if err := c.get(ctx, "/batches/"+url.PathEscape(id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// WaitBatch polls a batch until it is finished, the context ends or the
// configured maximum wait elapses.
func (c *Client) WaitBatch(ctx context.Context, id string) (*Batch, error) {
	deadline := time.Now().Add(c.maxWait)

	for {
		b, err := c.GetBatch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("poll batch %s: %w", id, err)
		}
		if b.Status == BatchFinished {
			logger.Info("batch finished", "batch_id", id,
				"total", b.TotalOperations, "errored", b.ErroredOperations)
			return b, nil
		}
		if time.Now().Add(c.pollInterval).After(deadline) {
			return b, fmt.Errorf("batch %s still %s after %s: %w", id, b.Status, c.maxWait, ErrBatchTimeout)
		}

		logger.Debug("batch pending", "batch_id", id, "status", b.Status,
			"finished", b.FinishedOperations, "total", b.TotalOperations)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled while waiting for batch %s: %w", id, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

// RunOperations sends ops and waits for them to complete. Fewer operations
// than the serial threshold are sent as individual calls whose failures
// are logged and counted but not returned; otherwise they go out as one
// batch which is polled until finished.
func (c *Client) RunOperations(ctx context.Context, ops []Operation) (BatchResult, error) {
	if len(ops) == 0 {
		return BatchResult{Mode: ModeNone}, nil
	}
	if len(ops) < c.serialThreshold {
		return c.runSerial(ctx, ops)
	}

	b, err := c.SubmitBatch(ctx, ops)
	if err != nil {
		return BatchResult{Mode: ModeBatch}, fmt.Errorf("submit batch of %d operations: %w", len(ops), err)
	}
	logger.Info("batch submitted", "batch_id", b.ID, "operations", len(ops))

	done, err := c.WaitBatch(ctx, b.ID)
	res := BatchResult{Mode: ModeBatch, BatchID: b.ID, Submitted: len(ops)}
	if done != nil {
		res.Errored = done.ErroredOperations
	}
	return res, err
}

func (c *Client) runSerial(ctx context.Context, ops []Operation) (BatchResult, error) {
	res := BatchResult{Mode: ModeSerial}
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		path := op.Path
		if len(op.Params) > 0 {
			q := url.Values{}
			for k, v := range op.Params {
				q.Set(k, v)
			}
			path += "?" + q.Encode()
		}
		var body interface{}
		if op.Body != "" {
			body = json.RawMessage(op.Body)
		}
		res.Submitted++
		if _, err := c.Call(ctx, op.Method, path, body); err != nil {
			res.Failed++
			logger.Warn("serial operation failed", "method", op.Method, "path", op.Path, "error", err)
		}
	}
	return res, nil
}
