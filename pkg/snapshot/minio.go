package snapshot

import (
	"bytes"
	"context"
	"github.com/minio/minio-go/v7"
	"io"
	"path"
)

type MinIOBackend struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinIOBackend(client *minio.Client, bucket, prefix string) *MinIOBackend {
	return &MinIOBackend{client: client, bucket: bucket, prefix: prefix}
}

func (b *MinIOBackend) key(sessionID string) string {
	return path.Join(b.prefix, objectName(sessionID))
}

func (b *MinIOBackend) Location(sessionID string) string {
	return "s3://" + path.Join(b.bucket, b.key(sessionID))
}

func (b *MinIOBackend) Read(ctx context.Context, sessionID string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.key(sessionID), minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinIOError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinIOError(err)
	}
	return data, nil
}

func (b *MinIOBackend) Write(ctx context.Context, sessionID string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.key(sessionID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func mapMinIOError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotExist
	}
	return err
}
