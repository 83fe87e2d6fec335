package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/vatbq/lia/errors"
	"github.com/vatbq/lia/pkg/config"
)

// MinIOClient stores session recordings in object storage. Recordings stay
// private; access goes through presigned URLs.
type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient creates a new MinIO client and ensures the bucket exists
func NewMinIOClient(cfg *config.StorageConfig) (*MinIOClient, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	client := &MinIOClient{
		client: minioClient,
		bucket: cfg.BucketName,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return client, nil
}

func (m *MinIOClient) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// UploadRecording stores a finished session's WAV audio and returns the
// object path.
func (m *MinIOClient) UploadRecording(ctx context.Context, callID string, wav []byte) (string, error) {
	objectName := fmt.Sprintf("recordings/%s.wav", callID)

	_, err := m.client.PutObject(ctx, m.bucket, objectName,
		bytes.NewReader(wav), int64(len(wav)),
		minio.PutObjectOptions{ContentType: "audio/wav"})
	if err != nil {
		return "", apperrors.ErrStorageFailed("upload recording", err)
	}

	return fmt.Sprintf("%s/%s", m.bucket, objectName), nil
}

// PresignedRecordingURL returns a time-limited download URL for a recording
func (m *MinIOClient) PresignedRecordingURL(ctx context.Context, callID string, expiry time.Duration) (string, error) {
	objectName := fmt.Sprintf("recordings/%s.wav", callID)

	url, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, expiry, nil)
	if err != nil {
		return "", apperrors.ErrStorageFailed("presign recording", err)
	}
	return url.String(), nil
}

// DeleteRecording removes a stored recording
func (m *MinIOClient) DeleteRecording(ctx context.Context, callID string) error {
	objectName := fmt.Sprintf("recordings/%s.wav", callID)

	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return apperrors.ErrStorageFailed("delete recording", err)
	}
	return nil
}
