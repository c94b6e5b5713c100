package report

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/listsync/internal/config"
)

// LoadAWSConfig loads the default credential chain for the region, using
// the shared profile when one is configured.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// NewSinks returns the log sink plus the S3 and DynamoDB sinks the report
// configuration enables.
func NewSinks(ctx context.Context, rc config.ReportConfig) (MultiSink, error) {
	sinks := MultiSink{LogSink{}}
	if !rc.Enabled() {
		return sinks, nil
	}
	cfg, err := LoadAWSConfig(ctx, rc.AWSRegion, rc.AWSProfile)
	if err != nil {
		return nil, err
	}
	if rc.S3Bucket != "" {
		sinks = append(sinks, NewS3Sink(s3.NewFromConfig(cfg), rc.S3Bucket, rc.S3Prefix))
	}
	if rc.DynamoDBTable != "" {
		sinks = append(sinks, NewDynamoSink(dynamodb.NewFromConfig(cfg), rc.DynamoDBTable))
	}
	return sinks, nil
}
