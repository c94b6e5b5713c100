package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/pkg/logger"
	"github.com/ignite/listsync/internal/service/listsync"
)

type fakeS3 struct {
	puts []*s3.PutObjectInput
	body []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

type fakeDynamo struct {
	items []map[string]types.AttributeValue
	query *dynamodb.QueryInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.query = in
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

type failingSink struct{}

func (failingSink) Publish(context.Context, Report) error { return errors.New("down") }

var started = time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

func pushResult() listsync.ListResult {
	return listsync.ListResult{
		ListID: "L1",
		Stats: &listsync.SyncStats{
			ListID:     "L1",
			Direction:  domain.DirectionPush,
			StartedAt:  started,
			FinishedAt: started.Add(1500 * time.Millisecond),
			Match:      listsync.MatchResult{Failures: 2},
			Push:       &listsync.PushResult{Additions: 1, Unsubscribes: 2},
		},
	}
}

func TestFromResult(t *testing.T) {
	r := FromResult("run-1", domain.DirectionPush, listsync.StepRun, pushResult())
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, int64(1500), r.DurationMS)
	assert.Equal(t, 3, r.Mutations)
	assert.Equal(t, 2, r.Quarantined)

	failed := FromResult("run-1", domain.DirectionPull, listsync.StepRun, listsync.ListResult{ListID: "L2", Err: errors.New("boom")})
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Error)
	assert.False(t, failed.StartedAt.IsZero())

	skipped := FromResult("run-1", domain.DirectionPull, listsync.StepRun, listsync.ListResult{ListID: "L3", Skipped: true})
	assert.Equal(t, StatusSkipped, skipped.Status)
}

func TestS3Sink_PutsJSONUnderListAndDay(t *testing.T) {
	f := &fakeS3{}
	sink := NewS3Sink(f, "reports", "listsync/runs")
	r := FromResult("run-1", domain.DirectionPush, listsync.StepRun, pushResult())

	require.NoError(t, sink.Publish(context.Background(), r))
	require.Len(t, f.puts, 1)
	assert.Equal(t, "reports", *f.puts[0].Bucket)
	assert.Equal(t, "listsync/runs/L1/2026-05-04/run-1.json", *f.puts[0].Key)
	assert.Equal(t, "application/json", *f.puts[0].ContentType)

	var got Report
	require.NoError(t, json.Unmarshal(f.body, &got))
	assert.Equal(t, 1, got.Stats.Push.Additions)
}

func TestDynamoSink_PublishAndHistory(t *testing.T) {
	f := &fakeDynamo{}
	sink := NewDynamoSink(f, "listsync-runs")
	r := FromResult("run-1", domain.DirectionPush, listsync.StepRun, pushResult())

	require.NoError(t, sink.Publish(context.Background(), r))
	require.Len(t, f.items, 1)

	var item HistoryItem
	require.NoError(t, attributevalue.UnmarshalMap(f.items[0], &item))
	assert.Equal(t, "LIST#L1", item.PK)
	assert.Equal(t, "2026-05-04T03:02:01Z#run-1", item.SK)
	assert.Equal(t, 3, item.Mutations)
	assert.NotZero(t, item.TTL)

	history, err := sink.History(context.Background(), "L1", started.Add(-time.Hour), started)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "run-1", history[0].RunID)
	assert.Equal(t, "listsync-runs", *f.query.TableName)
	assert.Equal(t, "2026-05-04T03:02:01Z~",
		f.query.ExpressionAttributeValues[":to"].(*types.AttributeValueMemberS).Value)
}

func TestPublishAll_LogsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	var logged bytes.Buffer
	sink := MultiSink{LogSink{Log: logger.New(&logged, logger.INFO, true)}, failingSink{}}
	results := []listsync.ListResult{pushResult(), {ListID: "L2", Err: errors.New("remote down")}}

	reports := PublishAll(context.Background(), sink, "run-9", domain.DirectionPush, listsync.StepRun, results)
	require.Len(t, reports, 2)
	assert.Equal(t, StatusFailed, reports[1].Status)
	assert.Contains(t, buf.String(), "publish run report failed")
	assert.Contains(t, logged.String(), `"run_id":"run-9"`)
	assert.Contains(t, logged.String(), "remote down")
}
