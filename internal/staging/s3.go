package staging

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// MaxDeleteBatch is the largest number of keys a single DeleteObjects call accepts.
const MaxDeleteBatch = 1000

// ParquetContentType is the media type artifacts are uploaded with.
const ParquetContentType = "application/vnd.apache.parquet"

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config configures an S3Store.
type S3Config struct {
	Bucket string
	Region string
	// Profile selects a shared config profile. Empty uses the default chain.
	Profile string
	// Endpoint points the client at an S3-compatible service (MinIO, LocalStack).
	// Path-style addressing is used when it is set.
	Endpoint string
}

// S3Store stages objects in an S3 bucket. PutObject replaces objects atomically.
type S3Store struct {
	client S3API
	bucket string
}

// NewS3Store loads the default AWS configuration and creates a store for the bucket.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "staging bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to load AWS configuration", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return NewS3StoreWithClient(client, cfg.Bucket), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Bucket returns the bucket objects are stored in.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// Put uploads body under key.
func (s *S3Store) Put(ctx context.Context, key string, body io.ReadSeeker) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(ParquetContentType),
	})
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to upload s3://%s/%s", s.bucket, key)
	}

	return nil
}

// Get downloads the object under key. The caller closes the body.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeArtifactNotFound, "object not found: s3://%s/%s", s.bucket, key)
		}

		return nil, errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to download s3://%s/%s", s.bucket, key)
	}

	return out.Body, nil
}

// List pages through ListObjectsV2 for prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to list s3://%s/%s", s.bucket, prefix)
		}

		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	slices.SortFunc(objects, func(a, b Object) int { return strings.Compare(a.Key, b.Key) })

	return objects, nil
}

// Head reports whether key exists.
func (s *S3Store) Head(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	if isNotFound(err) {
		return false, nil
	}

	return false, errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to head s3://%s/%s", s.bucket, key)
}

// Delete removes keys in batches of MaxDeleteBatch.
func (s *S3Store) Delete(ctx context.Context, keys ...string) error {
	for batch := range slices.Chunk(keys, MaxDeleteBatch) {
		identifiers := make([]s3types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			identifiers = append(identifiers, s3types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{
				Objects: identifiers,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to delete %d objects from s3://%s", len(batch), s.bucket)
		}

		if len(out.Errors) > 0 {
			first := out.Errors[0]

			return errors.Newf(errors.ErrCodeStagingFailed, "failed to delete %d objects from s3://%s, first: %s: %s",
				len(out.Errors), s.bucket, aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}

	return nil
}

func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	if goerrors.As(err, &notFound) {
		return true
	}

	var noSuchKey *s3types.NoSuchKey
	if goerrors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if goerrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}

	// HEAD responses carry no body, so some services only give us the status.
	var withStatus interface{ HTTPStatusCode() int }
	if goerrors.As(err, &withStatus) {
		return withStatus.HTTPStatusCode() == http.StatusNotFound
	}

	return false
}

// String identifies the store in logs.
func (s *S3Store) String() string {
	return fmt.Sprintf("s3://%s", s.bucket)
}
