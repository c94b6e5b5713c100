package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const sortKeyLayout = "2006-01-02T15:04:05Z"

// DynamoAPI is the part of the DynamoDB client the sink uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// HistoryItem is the DynamoDB item of one run: PK is LIST#<list id>, SK the
// run start time followed by the run id.
type HistoryItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	RunID     string `dynamodbav:"RunID"`
	Status    string `dynamodbav:"Status"`
	Mutations int    `dynamodbav:"Mutations"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

// DynamoSink keeps a queryable run history per list.
type DynamoSink struct {
	client DynamoAPI
	table  string
	ttl    time.Duration
}

// NewDynamoSink creates a history sink. Items expire after 90 days.
func NewDynamoSink(client DynamoAPI, table string) *DynamoSink {
	return &DynamoSink{client: client, table: table, ttl: 90 * 24 * time.Hour}
}

func listPK(listID string) string { return "LIST#" + listID }

func (s *DynamoSink) Publish(ctx context.Context, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	now := time.Now().UTC()
	item := HistoryItem{
		PK:        listPK(r.ListID),
		SK:        r.StartedAt.UTC().Format(sortKeyLayout) + "#" + r.RunID,
		RunID:     r.RunID,
		Status:    r.Status,
		Mutations: r.Mutations,
		Data:      string(data),
		Timestamp: now.Format(time.RFC3339),
		TTL:       now.Add(s.ttl).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

// History returns the reports of a list whose runs started in [from, to].
func (s *DynamoSink) History(ctx context.Context, listID string, from, to time.Time) ([]Report, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: listPK(listID)},
			":from": &types.AttributeValueMemberS{Value: from.UTC().Format(sortKeyLayout)},
			// "~" sorts after the "#<run id>" suffix.
			":to": &types.AttributeValueMemberS{Value: to.UTC().Format(sortKeyLayout) + "~"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying DynamoDB: %w", err)
	}

	var reports []Report
	for _, av := range result.Items {
		var item HistoryItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			continue
		}
		var r Report
		if err := json.Unmarshal([]byte(item.Data), &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}
