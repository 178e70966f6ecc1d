// Package s3 serves carrier configuration assets out of an S3 bucket.
//
// A Source maps asset names such as "etc/apns-conf.xml" to object keys under
// a prefix and implements assets.Source, so a bucket can stand in for the
// system or vendor area of a Layout. Sync mirrors a whole prefix into a local
// directory for hosts that should not reach the bucket at boot.
//
// # Authentication
//
// The client uses the AWS SDK default credential chain. When no access key is
// present in the environment, requests are sent anonymously so that public
// asset buckets work without configuration.
//
// # Usage Example
//
//	src, err := s3.New(ctx, s3.Config{
//		Region: "us-east-1",
//		Bucket: "carrier-assets",
//		Prefix: "vendor/",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	layout.Vendor = src
package s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/superfly/carrierconf/assets"
)

// MaxAssetSize bounds a single asset object. Carrier tables are a few
// megabytes at most.
const MaxAssetSize = 64 * 1024 * 1024

// API is the subset of the S3 client used by Source.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Source reads assets from one bucket prefix.
type Source struct {
	api    API
	bucket string
	prefix string
	logger logrus.FieldLogger
}

var _ assets.Source = (*Source)(nil)

// Config holds S3 source configuration.
type Config struct {
	// Region is the AWS region (optional, defaults to us-east-1)
	Region string

	// Bucket holds the asset objects
	Bucket string

	// Prefix is prepended to every asset name
	Prefix string

	// Endpoint overrides the service endpoint (S3-compatible stores)
	Endpoint string

	Logger logrus.FieldLogger
}

// DefaultConfig returns a default S3 configuration.
func DefaultConfig() Config {
	return Config{
		Region: "us-east-1",
		Bucket: "carrierconf-assets",
	}
}

// New creates a Source backed by the AWS SDK.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, cfg), nil
}

// NewWithAPI creates a Source over an existing client.
func NewWithAPI(api API, cfg Config) *Source {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Source{
		api:    api,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.WithField("component", "s3"),
	}
}

func (s *Source) String() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

func (s *Source) key(name string) (string, error) {
	if err := validateKey(name); err != nil {
		return "", fmt.Errorf("invalid asset name: %w", err)
	}
	return s.prefix + name, nil
}

// Open streams the object for name. The body is capped at MaxAssetSize.
func (s *Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	if out.ContentLength != nil && *out.ContentLength > MaxAssetSize {
		out.Body.Close()
		return nil, fmt.Errorf("asset %s too large: %d bytes (max %d)", key, *out.ContentLength, MaxAssetSize)
	}
	s.logger.WithField("key", key).Debug("opened asset")
	return &limitedBody{Reader: io.LimitReader(out.Body, MaxAssetSize), Closer: out.Body}, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// Stat reports size and last-modified time of name.
func (s *Source) Stat(ctx context.Context, name string) (assets.Info, error) {
	key, err := s.key(name)
	if err != nil {
		return assets.Info{}, err
	}
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return assets.Info{}, s.wrap("head", key, err)
	}
	info := assets.Info{Name: name}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

// wrap converts not-found API errors into fs.ErrNotExist.
func (s *Source) wrap(op, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%s s3://%s/%s: %w", op, s.bucket, key, fs.ErrNotExist)
		}
	}
	return fmt.Errorf("failed to %s s3://%s/%s: %w", op, s.bucket, key, err)
}

// Object is one listed asset.
type Object struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// List returns every asset under the prefix, named relative to it.
func (s *Source) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			o := Object{Name: strings.TrimPrefix(*obj.Key, s.prefix)}
			if obj.Size != nil {
				o.Size = *obj.Size
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			objects = append(objects, o)
		}
	}
	s.logger.WithField("count", len(objects)).Debug("listed assets")
	return objects, nil
}

// SyncResult describes one mirrored asset.
type SyncResult struct {
	Name      string
	LocalPath string
	Checksum  string
	SizeBytes int64
}

// Sync copies every listed asset into dest, keeping relative names and the
// remote modification time so that overlay selection behaves the same on
// the local copy. Each file is written to a temp path and renamed.
func (s *Source) Sync(ctx context.Context, dest string) ([]SyncResult, error) {
	objects, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]SyncResult, 0, len(objects))
	for _, obj := range objects {
		if err := validateKey(obj.Name); err != nil {
			s.logger.WithError(err).WithField("key", obj.Name).Warn("skipping object")
			continue
		}
		res, err := s.syncOne(ctx, obj, filepath.Join(dest, filepath.FromSlash(obj.Name)))
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Source) syncOne(ctx context.Context, obj Object, destPath string) (SyncResult, error) {
	body, err := s.Open(ctx, obj.Name)
	if err != nil {
		return SyncResult{}, err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return SyncResult{}, fmt.Errorf("failed to create destination directory: %w", err)
	}
	tmpPath := destPath + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		tmp.Close()
		if _, err := os.Stat(tmpPath); err == nil {
			os.Remove(tmpPath)
		}
	}()

	hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hash), body)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to download %s: %w", obj.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		return SyncResult{}, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return SyncResult{}, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return SyncResult{}, fmt.Errorf("failed to move file to destination: %w", err)
	}
	if !obj.LastModified.IsZero() {
		_ = os.Chtimes(destPath, obj.LastModified, obj.LastModified)
	}

	checksum := hex.EncodeToString(hash.Sum(nil))
	s.logger.WithFields(logrus.Fields{
		"asset":    obj.Name,
		"size":     written,
		"checksum": checksum,
	}).Info("asset synced")

	return SyncResult{Name: obj.Name, LocalPath: destPath, Checksum: checksum, SizeBytes: written}, nil
}

// validateKey rejects names that could escape the prefix or a local mirror.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > 1024 {
		return fmt.Errorf("key too long: %d characters (max 1024)", len(key))
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key contains path traversal: %s", key)
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("key should not start with /: %s", key)
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key contains null byte")
	}
	return nil
}
