package artifact

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
)

const (
	EmbeddingsFile = "image_embeddings.bin"
	SimilarityFile = "similarity_matrix.bin"
	MappingFile    = "index_mapping.json"
)

// Layout описывает расположение набора артефактов в локальной директории.
type Layout struct {
	Dir string
}

func NewLayout(dir string) Layout {
	return Layout{Dir: dir}
}

func (l Layout) EmbeddingsPath() string { return filepath.Join(l.Dir, EmbeddingsFile) }
func (l Layout) SimilarityPath() string { return filepath.Join(l.Dir, SimilarityFile) }
func (l Layout) MappingPath() string    { return filepath.Join(l.Dir, MappingFile) }

// Files возвращает имена файлов набора. Соответствие идёт последним:
// его появление означает, что матрицы уже на месте.
func Files() []string {
	return []string{EmbeddingsFile, SimilarityFile, MappingFile}
}

// Set — результат загрузки набора. Ошибки хранятся раздельно:
// битая матрица близости отключает только режим похожих вещей, но не текстовый поиск.
type Set struct {
	Store         *EmbeddingStore
	Similarity    *SimilarityMatrix
	StoreErr      error
	SimilarityErr error
}

// Load загружает набор артефактов. Никогда не возвращает частично согласованное состояние:
// матрица близости принимается только если совпадает с загруженными векторами.
func Load(l Layout) *Set {
	set := &Set{}

	store, err := LoadEmbeddingStore(l.EmbeddingsPath(), l.MappingPath())
	if err != nil {
		set.StoreErr = err
		set.SimilarityErr = e.Wrap("similarity matrix depends on embeddings", err)
		return set
	}
	set.Store = store

	sim, err := LoadSimilarityMatrix(l.SimilarityPath(), store)
	if err != nil {
		set.SimilarityErr = err
		return set
	}
	set.Similarity = sim

	return set
}

// Write атомарно записывает набор артефактов, проверив согласованность форм.
// Контрольные суммы матриц заносятся в mapping.
func Write(l Layout, mapping *IndexMapping, embeddings *Matrix, similarity *Matrix) error {
	const op = "artifact.Write"

	mapping.Checksums = &Checksums{
		Embeddings: embeddings.Checksum(),
		Similarity: similarity.Checksum(),
	}

	if err := mapping.Validate(); err != nil {
		return e.Wrap(op, err)
	}

	if embeddings.Rows != mapping.Len() || embeddings.Cols != mapping.Dimension {
		return e.Wrap(op, fmt.Errorf("%w: embeddings [%d, %d] vs mapping of %d items, dim %d",
			e.ErrArtifactCorrupt, embeddings.Rows, embeddings.Cols, mapping.Len(), mapping.Dimension))
	}

	if similarity.Rows != mapping.Len() || similarity.Cols != mapping.Len() {
		return e.Wrap(op, fmt.Errorf("%w: similarity [%d, %d] vs mapping of %d items",
			e.ErrArtifactCorrupt, similarity.Rows, similarity.Cols, mapping.Len()))
	}

	if err := WriteMatrixFile(l.EmbeddingsPath(), embeddings); err != nil {
		return e.Wrap(op, err)
	}

	if err := WriteMatrixFile(l.SimilarityPath(), similarity); err != nil {
		return e.Wrap(op, err)
	}

	if err := WriteMappingFile(l.MappingPath(), mapping); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// IsStartupFatal сообщает, относится ли ошибка к классу ошибок загрузки артефактов.
func IsStartupFatal(err error) bool {
	return errors.Is(err, e.ErrArtifactMissing) || errors.Is(err, e.ErrArtifactCorrupt)
}
