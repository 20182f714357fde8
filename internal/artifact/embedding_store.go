package artifact

import (
	"fmt"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
)

// EmbeddingStore хранит предвычисленные векторы каталога [N, D].
// После загрузки только читается и безопасен для конкурентного доступа без блокировок.
type EmbeddingStore struct {
	resolver *CatalogResolver
	vectors  *Matrix
	norms    []float32
	model    string
	version  string

	// similaritySum — ожидаемая контрольная сумма матрицы близости того же прогона.
	similaritySum uint32
}

// NewEmbeddingStore проверяет согласованность векторов и соответствия.
func NewEmbeddingStore(mapping *IndexMapping, vectors *Matrix) (*EmbeddingStore, error) {
	const op = "artifact.NewEmbeddingStore"

	if vectors.Rows != mapping.Len() {
		return nil, e.Wrap(op, fmt.Errorf("%w: embeddings have %d rows, mapping has %d items",
			e.ErrArtifactCorrupt, vectors.Rows, mapping.Len()))
	}

	if vectors.Cols != mapping.Dimension {
		return nil, e.Wrap(op, fmt.Errorf("%w: embeddings have dimension %d, mapping declares %d",
			e.ErrArtifactCorrupt, vectors.Cols, mapping.Dimension))
	}

	norms := make([]float32, vectors.Rows)
	for i := range norms {
		norms[i] = norm(vectors.Row(i))
	}

	store := &EmbeddingStore{
		resolver: NewCatalogResolver(mapping),
		vectors:  vectors,
		norms:    norms,
		model:    mapping.ModelVersion,
		version:  mapping.Version,
	}
	if mapping.Checksums != nil {
		store.similaritySum = mapping.Checksums.Similarity
	}

	return store, nil
}

// LoadEmbeddingStore читает артефакт векторов и соответствие с диска.
// Векторы из другого прогона отвергаются по контрольной сумме.
func LoadEmbeddingStore(vectorsPath string, mappingPath string) (*EmbeddingStore, error) {
	mapping, err := ReadMappingFile(mappingPath)
	if err != nil {
		return nil, err
	}

	vectors, err := ReadMatrixFile(vectorsPath)
	if err != nil {
		return nil, err
	}

	if sum := vectors.Checksum(); sum != mapping.Checksums.Embeddings {
		return nil, e.Wrap(vectorsPath, fmt.Errorf("%w: embeddings checksum %08x, mapping %q expects %08x",
			e.ErrArtifactCorrupt, sum, mapping.Version, mapping.Checksums.Embeddings))
	}

	return NewEmbeddingStore(mapping, vectors)
}

// VectorFor возвращает вектор вещи. Вещь, добавленная после последнего пересчёта, — e.ErrItemNotIndexed.
func (s *EmbeddingStore) VectorFor(itemID int64) ([]float32, error) {
	pos, err := s.resolver.Resolve(itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: id=%d", e.ErrItemNotIndexed, itemID)
	}

	return s.vectors.Row(pos), nil
}

// Nearest оценивает q против всех векторов каталога и возвращает n лучших
// по убыванию score, при равенстве по возрастанию item_id.
func (s *EmbeddingStore) Nearest(q []float32, n int) ([]domain.ScoredItem, error) {
	if len(q) != s.vectors.Cols {
		return nil, fmt.Errorf("%w: query has %d dims, catalog has %d", e.ErrDimensionMismatch, len(q), s.vectors.Cols)
	}

	qNorm := norm(q)
	top := newTopK(n)
	for i := 0; i < s.vectors.Rows; i++ {
		top.offer(domain.ScoredItem{
			ItemID: s.resolver.ids[i],
			Score:  scoreWithNorms(q, qNorm, s.vectors.Row(i), s.norms[i]),
		})
	}

	return top.result(), nil
}

// Resolver возвращает резолвер, построенный из соответствия этого набора артефактов.
func (s *EmbeddingStore) Resolver() *CatalogResolver {
	return s.resolver
}

func (s *EmbeddingStore) Len() int {
	return s.vectors.Rows
}

func (s *EmbeddingStore) Dim() int {
	return s.vectors.Cols
}

// zeroRow сообщает, что вектор строки i нулевой.
func (s *EmbeddingStore) zeroRow(i int) bool {
	return s.norms[i] == Epsilon
}

// ModelVersion — версия модели, которой посчитаны векторы.
func (s *EmbeddingStore) ModelVersion() string {
	return s.model
}
