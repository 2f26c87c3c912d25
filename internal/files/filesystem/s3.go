package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Scheme prefixes object URLs handled by S3FileSystem.
const S3Scheme = "s3://"

// S3Config describes an S3-compatible endpoint.
type S3Config struct {
	Endpoint        string // host[:port] or http(s):// URL
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	UseSSL          bool
}

// S3ConfigFromEnv reads PGSTITCH_S3_ENDPOINT and the standard AWS_* credential
// variables. The endpoint defaults to AWS S3.
func S3ConfigFromEnv() S3Config {
	endpoint := os.Getenv("PGSTITCH_S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "https://s3.amazonaws.com"
	}
	return S3Config{
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Region:          os.Getenv("AWS_REGION"),
		UseSSL:          os.Getenv("PGSTITCH_S3_INSECURE") == "",
	}
}

// S3FileSystem streams objects from an S3-compatible store through minio-go.
// Names are s3://bucket/key URLs.
type S3FileSystem struct {
	client *minio.Client
}

// NewS3FileSystem creates a client for cfg. Without static keys the client
// falls back to the AWS environment and IAM credential chain.
func NewS3FileSystem(cfg S3Config) (*S3FileSystem, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	creds := credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	if cfg.AccessKeyID == "" {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.IAM{},
		})
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &S3FileSystem{client: client}, nil
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(name string) (bucket, key string, err error) {
	if !strings.HasPrefix(name, S3Scheme) {
		return "", "", fmt.Errorf("not an s3 url: %s", name)
	}
	bucket, key, _ = strings.Cut(strings.TrimPrefix(name, S3Scheme), "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 url has no bucket: %s", name)
	}
	return bucket, key, nil
}

func (s *S3FileSystem) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(name)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyS3Error(name, "open", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, classifyS3Error(name, "open", err)
	}
	return obj, nil
}

func (s *S3FileSystem) Stat(ctx context.Context, name string) (FileInfo, error) {
	bucket, key, err := ParseS3URL(name)
	if err != nil {
		return nil, err
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return &memoryFileInfo{name: path.Base(key), size: info.Size, modTime: info.LastModified}, nil
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return nil, classifyS3Error(name, "stat", err)
		}
	}

	// A key prefix with objects below it acts as a directory. The iterator
	// runs in this goroutine, so returning on the first object ends the listing.
	prefix := dirKey(key)
	for obj := range s.client.ListObjectsIter(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, MaxKeys: 1}) {
		if obj.Err != nil {
			return nil, classifyS3Error(name, "stat", obj.Err)
		}
		return &memoryFileInfo{name: path.Base(strings.TrimSuffix(prefix, "/")), isDir: true, modTime: time.Now()}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (s *S3FileSystem) List(ctx context.Context, dir string) ([]string, error) {
	bucket, key, err := ParseS3URL(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for obj := range s.client.ListObjectsIter(ctx, bucket, minio.ListObjectsOptions{Prefix: dirKey(key), Recursive: true}) {
		if obj.Err != nil {
			return nil, classifyS3Error(dir, "list", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		out = append(out, S3Scheme+bucket+"/"+obj.Key)
	}
	sort.Strings(out)
	return out, nil
}

func dirKey(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

func classifyS3Error(name, op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return &fs.PathError{Op: op, Path: name, Err: errors.Join(fs.ErrNotExist, err)}
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return &fs.PathError{Op: op, Path: name, Err: errors.Join(fs.ErrPermission, err)}
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

var _ Provider = (*S3FileSystem)(nil)
