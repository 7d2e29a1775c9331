package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/traffic"
	infraconfig "github.com/trafficsim/backend/internal/infrastructure/config"
)

// Ensure S3ProfileStore implements traffic.ProfileStore
var _ traffic.ProfileStore = (*S3ProfileStore)(nil)

// S3ProfileStore archives visitor profiles in an S3-compatible bucket.
// It is compatible with any S3-compatible storage (AWS S3, RustFS,
// MinIO, etc.) and replaces the filesystem store when enabled, so
// profiles survive container restarts and can be shared between hosts.
//
// Keys follow the filesystem layout: <prefix>/<profile_id>/state.json.
type S3ProfileStore struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ProfileStoreOption is a functional option for configuring S3ProfileStore
type S3ProfileStoreOption func(*S3ProfileStore)

// WithLogger sets a custom logger for S3ProfileStore
func WithLogger(logger *zap.Logger) S3ProfileStoreOption {
	return func(s *S3ProfileStore) {
		s.logger = logger
	}
}

// NewS3ProfileStore creates a new S3ProfileStore from configuration.
// It supports any S3-compatible storage backend (AWS S3, RustFS, MinIO, etc.)
func NewS3ProfileStore(cfg *infraconfig.StorageConfig, opts ...S3ProfileStoreOption) (*S3ProfileStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}

	// Validate required configuration
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	// Build endpoint URL
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000" // RustFS default
	}

	// Ensure endpoint has protocol
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}

	// Validate endpoint URL
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // session token (not used for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	// Create S3 client with path-style addressing and custom endpoint
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	store := &S3ProfileStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}

	// Apply options
	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3ProfileStore) EnsureBucket(ctx context.Context) error {
	// Check if bucket exists
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		// Bucket exists
		return nil
	}

	// Check if error is because bucket doesn't exist
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		// Some other error
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	// Create bucket
	s.logger.Info("Creating profile archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" error (race condition)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("Profile archive bucket created", zap.String("bucket", s.bucket))
	return nil
}

// List returns the ids of every archived profile. Profiles are grouped
// under the configured key prefix, one pseudo-directory per id.
func (s *S3ProfileStore) List(ctx context.Context) ([]string, error) {
	root := s.prefix
	if root != "" {
		root += "/"
	}

	var ids []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(root),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing profiles: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			id := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, root), "/")
			if validateProfileID(id) == nil {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Load fetches the archived snapshot for the given profile id.
func (s *S3ProfileStore) Load(ctx context.Context, id string) (*traffic.Profile, error) {
	if err := validateProfileID(id); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.profileKey(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("profile %s not found", id)
		}
		return nil, fmt.Errorf("loading profile %s: %w", id, err)
	}
	defer out.Body.Close()

	state, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", id, err)
	}
	return &traffic.Profile{ID: id, StorageState: state}, nil
}

// Save archives the profile snapshot, replacing any previous state for
// the same id.
func (s *S3ProfileStore) Save(ctx context.Context, profile *traffic.Profile) error {
	if profile == nil {
		return errors.New("profile is required")
	}
	if err := validateProfileID(profile.ID); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.profileKey(profile.ID)),
		Body:        bytes.NewReader(profile.StorageState),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", profile.ID, err)
	}
	return nil
}

// GetBucket returns the bucket name
func (s *S3ProfileStore) GetBucket() string {
	return s.bucket
}

// profileKey builds the object key for a profile snapshot
func (s *S3ProfileStore) profileKey(id string) string {
	return path.Join(s.prefix, id, stateFileName)
}
