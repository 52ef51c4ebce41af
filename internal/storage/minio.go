// Package storage архивирует вложения ответов оператора в S3-совместимое хранилище.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL: внешний адрес хранилища для ссылок; пусто: адрес эндпоинта.
	PublicURL string
}

// Archive: бакет MinIO с публичным чтением через PublicURL.
type Archive struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewArchive подключается к MinIO и создаёт бакет, если его нет.
func NewArchive(ctx context.Context, opts Options) (*Archive, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket %s: %w", opts.Bucket, err)
		}
		slog.Info("storage: bucket created", "bucket", opts.Bucket)
	}
	public := opts.PublicURL
	if public == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + opts.Endpoint
	}
	return &Archive{client: client, bucket: opts.Bucket, publicURL: strings.TrimRight(public, "/")}, nil
}

// Put сохраняет файл и возвращает его публичный URL.
func (a *Archive) Put(ctx context.Context, ticketID, name, contentType string, data []byte) (string, error) {
	object := ObjectName(ticketID, name, uuid.NewString())
	_, err := a.client.PutObject(ctx, a.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio put %s: %w", object, err)
	}
	return a.publicURL + "/" + a.bucket + "/" + object, nil
}

// ObjectName: ключ объекта: <ticket>/<unique>_<имя файла>.
func ObjectName(ticketID, name, unique string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return ticketID + "/" + unique + "_" + base
}
