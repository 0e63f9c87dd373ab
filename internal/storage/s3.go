// Package storage implements the Blob Uploader: idempotent, deterministic-path
// uploads of generated scene images and audio to an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// minPayloadBytes guards against providers returning empty/truncated assets.
const minPayloadBytes = 100

// ErrInvalidPayload is returned when the asset bytes are implausibly small.
var ErrInvalidPayload = errors.New("invalid payload")

// ErrNotWritable wraps any failure to write to the backing store.
var ErrNotWritable = errors.New("blob store not writable")

// Client wraps S3 storage operations for both the image and audio buckets.
type Client struct {
	s3Client     *s3.Client
	bucketImages string
	bucketAudio  string
	publicURL    string
}

// NewClient creates a new S3-compatible storage client.
func NewClient(endpoint, region, bucketImages, bucketAudio, accessKey, secretKey string, useSSL bool, publicURL string) (*Client, error) {
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	}

	if endpoint != "" {
		configOpts = append(configOpts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing for MinIO compatibility; checksum headers relaxed
	// for S3-compatible backends (e.g. Cloudflare R2) that don't fully support them.
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	log.Info().
		Str("endpoint", endpoint).
		Str("bucket_images", bucketImages).
		Str("bucket_audio", bucketAudio).
		Msg("S3 client initialized")

	return &Client{
		s3Client:     s3Client,
		bucketImages: bucketImages,
		bucketAudio:  bucketAudio,
		publicURL:    publicURL,
	}, nil
}

// PutImage uploads a scene's image bytes to `<story_id>/<sequence>.<ext>` in
// the images bucket and returns its public or path-style URL.
func (c *Client) PutImage(ctx context.Context, storyID string, sequence int, ext string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("%s/%d.%s", storyID, sequence, ext)
	return c.put(ctx, c.bucketImages, key, data, contentType)
}

// PutAudio uploads a scene's audio bytes to `<story_id>/<sequence>.<ext>` in
// the audio bucket and returns its public or path-style URL.
func (c *Client) PutAudio(ctx context.Context, storyID string, sequence int, ext string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("%s/%d.%s", storyID, sequence, ext)
	return c.put(ctx, c.bucketAudio, key, data, contentType)
}

func (c *Client) put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if len(data) < minPayloadBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidPayload, len(data))
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotWritable, err)
	}

	log.Info().Str("bucket", bucket).Str("key", key).Msg("asset uploaded")

	return c.urlFor(bucket, key), nil
}

func (c *Client) urlFor(bucket, key string) string {
	if c.publicURL == "" {
		return fmt.Sprintf("%s/%s/%s", c.bucketEndpointHint(), bucket, key)
	}
	if c.publicURL[len(c.publicURL)-1] == '/' {
		return c.publicURL + bucket + "/" + key
	}
	return c.publicURL + "/" + bucket + "/" + key
}

// bucketEndpointHint is used only when no explicit public URL is configured;
// callers in that mode are expected to resolve the object via GetObject/a
// presigned URL rather than this best-effort string.
func (c *Client) bucketEndpointHint() string {
	return "s3"
}

// GetObject retrieves an object from either bucket by key.
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}
