// Package s3 implements the catalog contract on top of an S3 bucket.
//
// Collections map onto key prefixes, which S3 materializes implicitly,
// so collection creation has nothing to store. Every object has exactly
// one replica and its checksum rides S3's native SHA-256 support.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mirrorlake/catapult/pkg/catalog"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 100 * time.Millisecond
	defaultMaxDelay   = 30 * time.Second
)

// Client adapts one S3 endpoint to the catalog contract. Catalog paths
// keep the s3://bucket/key form end to end.
type Client struct {
	api        *awss3.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func New(cfg aws.Config) *Client {
	return &Client{
		api:        awss3.NewFromConfig(cfg),
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
}

// ParsePath splits an s3://bucket/key path. The key may be empty for
// bucket-root targets.
func ParsePath(p string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(p, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an S3 path: %s", p)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in S3 path: %s", p)
	}
	return bucket, strings.Trim(key, "/"), nil
}

// CreateCollection validates the bucket on the recursive form used for
// target roots. Plain prefixes materialize with their first object, so
// the non-recursive form has nothing to do.
func (c *Client) CreateCollection(ctx context.Context, p string, recursive bool) error {
	bucket, _, err := ParsePath(p)
	if err != nil {
		return err
	}
	if !recursive {
		return nil
	}

	err = c.withRetry(ctx, func() error {
		_, err := c.api.HeadBucket(ctx, &awss3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", bucket, err)
	}
	return nil
}

// ListCollections derives the existing prefixes under prefix from the
// keys currently in the bucket.
func (c *Client) ListCollections(ctx context.Context, prefix string) (mapset.Set[string], error) {
	bucket, keyPrefix, err := ParsePath(prefix)
	if err != nil {
		return nil, err
	}

	listPrefix := ""
	if keyPrefix != "" {
		listPrefix = keyPrefix + "/"
	}

	set := mapset.NewThreadUnsafeSet[string]()
	paginator := awss3.NewListObjectsV2Paginator(c.api, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		page, err := c.nextPageWithRetry(ctx, paginator)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			for dir := path.Dir(*obj.Key); dir != "." && dir != "/"; dir = path.Dir(dir) {
				set.Add("s3://" + bucket + "/" + dir)
			}
		}
	}

	return set, nil
}

func (c *Client) StatObject(ctx context.Context, collection, name string) ([]catalog.Replica, error) {
	bucket, key, err := ParsePath(collection + "/" + name)
	if err != nil {
		return nil, err
	}

	out, err := c.headObjectWithRetry(ctx, &awss3.HeadObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("head object: %w", err)
	}

	replica := catalog.Replica{
		Size: aws.ToInt64(out.ContentLength),
	}
	if out.ChecksumSHA256 != nil {
		replica.Checksum = *out.ChecksumSHA256
	}
	return []catalog.Replica{replica}, nil
}

func (c *Client) RemoveObject(ctx context.Context, p string) error {
	bucket, key, err := ParsePath(p)
	if err != nil {
		return err
	}

	err = c.withRetry(ctx, func() error {
		_, err := c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PutObject uploads in one request. Puts are atomic on S3, so the resume
// identifier has no backend state to key and is ignored; the overwrite
// flag is implicit in S3's last-writer-wins semantics.
func (c *Client) PutObject(ctx context.Context, req *catalog.PutRequest) error {
	bucket, key, err := ParsePath(req.Path)
	if err != nil {
		return err
	}

	file, err := os.Open(req.LocalPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	input := &awss3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(req.Size),
	}
	if req.Checksum != "" {
		// The service rejects a payload that does not hash to this
		// value and stores it for later HeadObject calls.
		input.ChecksumSHA256 = aws.String(req.Checksum)
	}
	if contentType := guessContentType(req.LocalPath); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	err = c.withRetry(ctx, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := c.api.PutObject(ctx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// withRetry runs fn until it succeeds, fails terminally, or attempts run
// out.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return err
		}

		lastErr = err
		if attempt < c.maxRetries {
			delay := c.calculateDelay(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) headObjectWithRetry(ctx context.Context, input *awss3.HeadObjectInput) (*awss3.HeadObjectOutput, error) {
	var out *awss3.HeadObjectOutput
	err := c.withRetry(ctx, func() error {
		var err error
		out, err = c.api.HeadObject(ctx, input)
		return err
	})
	return out, err
}

func (c *Client) nextPageWithRetry(ctx context.Context, paginator *awss3.ListObjectsV2Paginator) (*awss3.ListObjectsV2Output, error) {
	var out *awss3.ListObjectsV2Output
	err := c.withRetry(ctx, func() error {
		var err error
		out, err = paginator.NextPage(ctx)
		return err
	})
	return out, err
}

// isRetryableError checks if an error is retryable
func isRetryableError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "ServiceUnavailable", "RequestTimeout", "RequestTimeoutException":
			return true
		}
		// Retry on 5xx errors
		if httpErr, ok := apiErr.(interface{ HTTPStatusCode() int }); ok {
			code := httpErr.HTTPStatusCode()
			return code >= 500 && code < 600
		}
	}
	// Also retry on network errors
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

// calculateDelay calculates the retry delay with exponential backoff and jitter
func (c *Client) calculateDelay(attempt int) time.Duration {
	base := float64(c.baseDelay)
	delay := base * math.Pow(2.0, float64(attempt))

	// Add jitter (±25%)
	jitter := delay * 0.25 * (2*rand.Float64() - 1)
	delay += jitter

	// Cap at maxDelay
	if delay > float64(c.maxDelay) {
		delay = float64(c.maxDelay)
	}

	return time.Duration(delay)
}
