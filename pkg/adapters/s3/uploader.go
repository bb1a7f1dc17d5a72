package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// Config locates the bucket uploads are written to.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// ObjectStore is the subset of the MinIO client the uploader needs.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader implements ports.FileUploader on S3-compatible object storage.
type Uploader struct {
	client ObjectStore
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// New connects to the object store described by cfg.
func New(cfg Config) (*Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("s3 access key and secret key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return NewWithClient(client, cfg)
}

// NewWithClient creates an Uploader over an existing client.
func NewWithClient(client ObjectStore, cfg Config) (*Uploader, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return &Uploader{
		client: client,
		bucket: bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if !exists {
			u.initErr = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region})
		}
	})
	return u.initErr
}

// Upload implements ports.FileUploader. A size of -1 streams an unknown length.
func (u *Uploader) Upload(ctx context.Context, name, mimeType string, size int64, r io.Reader) (domain.FileInfo, error) {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return domain.FileInfo{}, errors.New("file name is required")
	}
	if err := u.ensureBucket(ctx); err != nil {
		return domain.FileInfo{}, fmt.Errorf("ensure bucket: %w", err)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id := uuid.NewString()
	key := id + "/" + name
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}

	info, err := u.client.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return domain.FileInfo{}, fmt.Errorf("put object %s: %w", key, err)
	}
	if info.Size > 0 {
		size = info.Size
	}

	return domain.FileInfo{
		ID:        id,
		Name:      name,
		Type:      fileType(mimeType),
		Size:      size,
		Extension: strings.TrimPrefix(path.Ext(name), "."),
		MimeType:  mimeType,
	}, nil
}

func fileType(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	default:
		return "document"
	}
}
