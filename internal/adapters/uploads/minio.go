package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"travel_desk/internal/adapters/observability"
	"travel_desk/internal/domain"
)

// ErrNotImage is returned for blobs whose content is not an image.
var ErrNotImage = errors.New("upload: not an image")

// objectPutter is the slice of *minio.Client the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioUploader stores images in an S3-compatible bucket and returns
// public URLs of the form <publicBase>/<root>/<uuid><ext>.
type MinioUploader struct {
	client     objectPutter
	bucket     string
	root       string
	publicBase string
}

func NewMinio(endpoint, accessKey, secretKey, bucket string, useSSL bool, root, publicBase string) (*MinioUploader, error) {
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return newUploader(cl, bucket, root, publicBase), nil
}

// EnsureBucket creates the bucket when missing.
func EnsureBucket(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) error {
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return err
	}
	ok, err := cl.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return cl.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func newUploader(c objectPutter, bucket, root, publicBase string) *MinioUploader {
	root = strings.Trim(root, "/")
	if root == "" {
		root = "uploads"
	}
	return &MinioUploader{
		client:     c,
		bucket:     bucket,
		root:       root,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// UploadImage sniffs the blob, stores it under a fresh key and returns its
// URL. Either the whole object is stored or an error is returned.
func (u *MinioUploader) UploadImage(ctx context.Context, f domain.LocalFile) (string, error) {
	if len(f.Data) == 0 {
		observability.ObserveUpload("rejected")
		return "", fmt.Errorf("%w: empty file %q", ErrNotImage, f.Name)
	}
	mt := mimetype.Detect(f.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		observability.ObserveUpload("rejected")
		return "", fmt.Errorf("%w: %q is %s", ErrNotImage, f.Name, mt.String())
	}

	key := u.root + "/" + uuid.NewString() + mt.Extension()
	start := time.Now()
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)),
		minio.PutObjectOptions{ContentType: mt.String()})
	observability.ObserveExternal("minio", "put_object", statusOf(err), time.Since(start))
	if err != nil {
		observability.ObserveUpload("failed")
		log.Warn().Err(err).Str("file", f.Name).Msg("image upload failed")
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	observability.ObserveUpload("ok")
	return u.publicBase + "/" + key, nil
}

func statusOf(err error) int {
	if err == nil {
		return 200
	}
	if r := minio.ToErrorResponse(err); r.StatusCode != 0 {
		return r.StatusCode
	}
	return 0
}
