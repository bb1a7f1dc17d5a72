package s3_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pipeprep/pkg/adapters/s3"
	"github.com/aretw0/pipeprep/pkg/ports"
)

var _ ports.FileUploader = (*s3.Uploader)(nil)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucket, opts).Error(0)
}

func (m *MockObjectStore) PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucket, object, r, size, opts)
	info, _ := args.Get(0).(minio.UploadInfo)
	return info, args.Error(1)
}

func TestUploader_Upload(t *testing.T) {
	store := new(MockObjectStore)
	store.On("BucketExists", mock.Anything, "uploads").Return(false, nil).Once()
	store.On("MakeBucket", mock.Anything, "uploads", mock.Anything).Return(nil).Once()
	store.On("PutObject", mock.Anything, "uploads",
		mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "prep/") && strings.HasSuffix(key, "/report.pdf")
		}),
		mock.Anything, int64(-1),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool { return o.ContentType == "application/pdf" }),
	).Return(minio.UploadInfo{Size: 42}, nil).Twice()

	u, err := s3.NewWithClient(store, s3.Config{Bucket: "uploads", Prefix: "/prep/"})
	require.NoError(t, err)

	info, err := u.Upload(context.Background(), "../../report.pdf", "application/pdf", -1, strings.NewReader("pdf"))
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "report.pdf", info.Name)
	assert.Equal(t, "pdf", info.Extension)
	assert.Equal(t, "document", info.Type)
	assert.Equal(t, int64(42), info.Size)

	// The bucket check runs once.
	second, err := u.Upload(context.Background(), "report.pdf", "application/pdf", -1, strings.NewReader("pdf"))
	require.NoError(t, err)
	assert.NotEqual(t, info.ID, second.ID)
	store.AssertExpectations(t)
}

func TestUploader_DefaultsMimeType(t *testing.T) {
	store := new(MockObjectStore)
	store.On("BucketExists", mock.Anything, "b").Return(true, nil)
	store.On("PutObject", mock.Anything, "b", mock.Anything, mock.Anything, int64(3), mock.Anything).
		Return(minio.UploadInfo{}, nil)

	u, err := s3.NewWithClient(store, s3.Config{Bucket: "b"})
	require.NoError(t, err)

	info, err := u.Upload(context.Background(), "notes", "", 3, strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", info.MimeType)
	assert.Equal(t, int64(3), info.Size)
	assert.Empty(t, info.Extension)
}

func TestUploader_Errors(t *testing.T) {
	_, err := s3.NewWithClient(new(MockObjectStore), s3.Config{})
	assert.Error(t, err)

	_, err = s3.New(s3.Config{Bucket: "b"})
	assert.Error(t, err)

	store := new(MockObjectStore)
	store.On("BucketExists", mock.Anything, "b").Return(false, errors.New("denied"))
	u, err := s3.NewWithClient(store, s3.Config{Bucket: "b"})
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), "a.txt", "text/plain", 1, strings.NewReader("a"))
	assert.ErrorContains(t, err, "denied")

	_, err = u.Upload(context.Background(), " ", "text/plain", 1, strings.NewReader("a"))
	assert.Error(t, err)
}
