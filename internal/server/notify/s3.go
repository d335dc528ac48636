package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/google/uuid"
	"github.com/thejerf/abtime"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// S3Outbox stores each message as a JSON object in an outbox bucket that
// the mail sender consumes.
type S3Outbox struct {
	client *s3.Client
	bucket string
	clock  abtime.AbstractTime
}

// NewS3Outbox builds an S3 client from the server config. It works against
// AWS and S3-compatible stores such as MinIO.
func NewS3Outbox(ctx context.Context, c *sc.Config, clock abtime.AbstractTime) (*S3Outbox, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Outbox{client: client, bucket: c.S3Bucket, clock: clock}, nil
}

// ObjectKey lays messages out by kind and day.
func ObjectKey(kind Kind, t time.Time) string {
	return fmt.Sprintf("outbox/%s/%d/%02d/%02d/%v.json", kind, t.Year(), t.Month(), t.Day(), uuid.New())
}

func (o *S3Outbox) Deliver(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	_, err = putObject(o.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(ObjectKey(m.Kind, o.clock.Now().UTC())),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put outbox object: %w", err)
	}
	return nil
}
