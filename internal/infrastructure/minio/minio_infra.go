package minio

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/artifact"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/jitter"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
)

const latestPointer = "latest"

var cleanupBackoff = jitter.NewBackoff(time.Second, 8*time.Second)

// MinioInfrastructure публикует и скачивает наборы артефактов в MinIO.
// Объекты набора лежат под {prefix}/{version}/{file}, а {prefix}/latest хранит версию последнего полного набора.
type MinioInfrastructure struct {
	repo        usecase.ArtifactRepository
	prefix      string
	uploadLimit int
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
}

func NewMinioInfrastructure(repo usecase.ArtifactRepository, prefix string, uploadLimit int,
	logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	if uploadLimit < 1 {
		uploadLimit = 1
	}

	return &MinioInfrastructure{
		repo:        repo,
		prefix:      strings.Trim(prefix, "/"),
		uploadLimit: uploadLimit,
		logger:      logger,
		shutdownCtx: shutdownCtx,
	}
}

// PublishArtifacts загружает файлы набора параллельно с ограничением одновременных операций.
// Последний файл из req.Files загружается только после остальных, затем переключается указатель latest.
// В случае ошибки отменяет остальные загрузки и запускает очистку уже загруженных файлов.
func (m *MinioInfrastructure) PublishArtifacts(ctx context.Context, req *usecase.PublishArtifactsReq) (*usecase.PublishArtifactsRes, error) {
	const op = "MinioInfrastructure.PublishArtifacts"

	if len(req.Files) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("no files to publish"))
	}

	keys, err := m.uploadAll(ctx, req.Version, req.Dir, req.Files[:len(req.Files)-1])
	if err != nil {
		m.CleanupArtifacts(keys)
		return nil, e.Wrap(op, err)
	}

	last := req.Files[len(req.Files)-1]
	lastKey := m.objectKey(req.Version, last)
	if err := m.repo.Upload(ctx, lastKey, filepath.Join(req.Dir, last)); err != nil {
		m.CleanupArtifacts(keys)
		return nil, e.Wrap(op, fmt.Errorf("upload %s failed: %w", last, err))
	}
	keys = append(keys, lastKey)

	if err := m.repo.Put(ctx, m.pointerKey(), []byte(req.Version), "text/plain"); err != nil {
		m.CleanupArtifacts(keys)
		return nil, e.Wrap(op, err)
	}

	m.logger.Infof("%s: published artifact set %s (%d objects)", op, req.Version, len(keys))
	return &usecase.PublishArtifactsRes{Keys: keys}, nil
}

// uploadAll загружает файлы параллельно. Возвращает ключи успешно загруженных объектов даже при ошибке.
func (m *MinioInfrastructure) uploadAll(ctx context.Context, version string, dir string, files []string) ([]string, error) {
	// Отмена остальных загрузок при первой ошибке
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keyCh := make(chan string, len(files))
	errCh := make(chan error, len(files))
	sem := make(chan struct{}, m.uploadLimit)

	var uploadWg sync.WaitGroup
	for _, file := range files {
		uploadWg.Add(1)
		go func() {
			defer uploadWg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			defer func() { <-sem }()

			key := m.objectKey(version, file)
			if err := m.repo.Upload(ctx, key, filepath.Join(dir, file)); err != nil {
				errCh <- fmt.Errorf("upload %s failed: %w", file, err)
				return
			}

			keyCh <- key
		}()
	}

	uploadWg.Wait()
	close(errCh)
	close(keyCh)

	keys := make([]string, 0, len(files))
	for key := range keyCh {
		keys = append(keys, key)
	}

	for err := range errCh {
		return keys, err
	}

	return keys, nil
}

// FetchLatest скачивает последний опубликованный набор в dir и возвращает его версию.
// Файлы сначала пишутся во временные, затем переименовываются; соответствие переименовывается последним.
func (m *MinioInfrastructure) FetchLatest(ctx context.Context, dir string) (string, error) {
	const op = "MinioInfrastructure.FetchLatest"

	raw, err := m.repo.Get(ctx, m.pointerKey())
	if err != nil {
		return "", e.Wrap(op, err)
	}

	version := strings.TrimSpace(string(raw))
	if version == "" {
		return "", e.Wrap(op, fmt.Errorf("%w: empty latest pointer", e.ErrArtifactMissing))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", e.Wrap(op, err)
	}

	files := artifact.Files()
	for _, file := range files {
		part := filepath.Join(dir, file+".part")
		if err := m.repo.Download(ctx, m.objectKey(version, file), part); err != nil {
			return "", e.Wrap(op, fmt.Errorf("download %s failed: %w", file, err))
		}
	}

	for _, file := range files {
		target := filepath.Join(dir, file)
		if err := os.Rename(target+".part", target); err != nil {
			return "", e.Wrap(op, err)
		}
	}

	m.logger.Infof("%s: fetched artifact set %s into %s", op, version, dir)
	return version, nil
}

// CleanupArtifacts запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupArtifacts(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: Cleaning up %d uploaded keys", op, len(keys))

	ctx, cancel := context.WithTimeout(m.shutdownCtx, 30*time.Second)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < 3; attempt++ {
			if err := m.repo.Delete(ctx, key); err == nil {
				break
			}

			if attempt == 2 {
				m.logger.Warnf("%s: giving up on key=%v", op, key)
				break
			}

			if err := cleanupBackoff.Wait(ctx, attempt); err != nil {
				m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

func (m *MinioInfrastructure) objectKey(version string, file string) string {
	return path.Join(m.prefix, version, file)
}

func (m *MinioInfrastructure) pointerKey() string {
	return path.Join(m.prefix, latestPointer)
}
