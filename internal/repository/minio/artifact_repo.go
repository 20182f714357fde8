package minio

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ObjectRepo реализует хранилище объектов поверх одного бакета MinIO.
// Используется и для артефактов, и для фото каталога.
type ObjectRepo struct {
	mc     *minio.Client
	bucket string
}

func NewObjectRepo(mc *minio.Client, bucket string) *ObjectRepo {
	return &ObjectRepo{
		mc:     mc,
		bucket: bucket,
	}
}

// Upload загружает локальный файл под ключом key.
func (o *ObjectRepo) Upload(ctx context.Context, key string, localPath string) error {
	if _, err := o.mc.FPutObject(ctx, o.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Download скачивает объект в локальный файл.
func (o *ObjectRepo) Download(ctx context.Context, key string, localPath string) error {
	if err := o.mc.FGetObject(ctx, o.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		if isNotFound(err) {
			return e.Wrap(whereami.WhereAmI(), errors.Join(e.ErrArtifactMissing, err))
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Put записывает небольшой объект из памяти.
func (o *ObjectRepo) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if _, err := o.mc.PutObject(ctx, o.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Get читает объект целиком.
func (o *ObjectRepo) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.mc.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, e.Wrap(whereami.WhereAmI(), errors.Join(e.ErrArtifactMissing, err))
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (o *ObjectRepo) Delete(ctx context.Context, key string) error {
	if err := o.mc.RemoveObject(ctx, o.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
