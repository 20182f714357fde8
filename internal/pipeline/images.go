package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/jimlawless/whereami"
)

// ImageSource читает фото каталога по относительному пути из БД.
type ImageSource interface {
	Read(ctx context.Context, imagePath string) ([]byte, error)
}

// LocalImages читает фото с диска относительно root.
type LocalImages struct {
	root string
}

func NewLocalImages(root string) *LocalImages {
	return &LocalImages{root: root}
}

func (l *LocalImages) Read(_ context.Context, imagePath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(normalizePath(imagePath))))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}

// ObjectImages читает фото из бакета, где ключ совпадает с путём в каталоге.
type ObjectImages struct {
	repo usecase.ArtifactRepository
}

func NewObjectImages(repo usecase.ArtifactRepository) *ObjectImages {
	return &ObjectImages{repo: repo}
}

func (o *ObjectImages) Read(ctx context.Context, imagePath string) ([]byte, error) {
	return o.repo.Get(ctx, normalizePath(imagePath))
}

func normalizePath(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
}
