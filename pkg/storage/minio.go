// Package storage archives chat attachments in MinIO.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"doubtiq-go/internal/config"
	"doubtiq-go/pkg/log"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AttachmentArchive stores uploaded files under chats/<chatID>/.
type AttachmentArchive struct {
	client *minio.Client
	bucket string
}

// NewAttachmentArchive connects to MinIO and creates the bucket if it is missing.
func NewAttachmentArchive(ctx context.Context, cfg config.MinIOConfig) (*AttachmentArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		log.Infof("bucket '%s' does not exist, creating it", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}
	}

	log.Infof("attachment archive ready, bucket '%s'", cfg.BucketName)
	return &AttachmentArchive{client: client, bucket: cfg.BucketName}, nil
}

// ObjectKey builds a unique key for a file attached to chatID.
func ObjectKey(chatID uint, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "attachment"
	}
	return fmt.Sprintf("chats/%d/%s-%s", chatID, uuid.NewString(), name)
}

// Put uploads r under key.
func (a *AttachmentArchive) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a time-limited download URL for key.
func (a *AttachmentArchive) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
