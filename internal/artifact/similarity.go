package artifact

import (
	"fmt"
	"math"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
)

const (
	// SymmetryTolerance — допустимое расхождение S[i][j] и S[j][i].
	SymmetryTolerance = 1e-5

	// diagTolerance — допустимое отклонение диагонали от 1 (от 0 только для нулевых векторов).
	diagTolerance  = 1e-3
	rangeTolerance = 1e-4
)

// SimilarityMatrix — предвычисленная матрица косинусной близости [N, N].
// Порядок строк и столбцов совпадает с EmbeddingStore.
type SimilarityMatrix struct {
	resolver *CatalogResolver
	m        *Matrix
}

// NewSimilarityMatrix проверяет форму, симметрию, диагональ и диапазон значений
// относительно векторов store.
func NewSimilarityMatrix(store *EmbeddingStore, m *Matrix) (*SimilarityMatrix, error) {
	const op = "artifact.NewSimilarityMatrix"

	resolver := store.Resolver()

	if m.Rows != m.Cols {
		return nil, e.Wrap(op, fmt.Errorf("%w: similarity matrix is not square: [%d, %d]", e.ErrArtifactCorrupt, m.Rows, m.Cols))
	}

	if m.Rows != resolver.Len() {
		return nil, e.Wrap(op, fmt.Errorf("%w: similarity matrix is [%d, %d], embeddings index has %d items",
			e.ErrArtifactCorrupt, m.Rows, m.Cols, resolver.Len()))
	}

	if err := validateSimilarity(m, store.zeroRow); err != nil {
		return nil, e.Wrap(op, err)
	}

	return &SimilarityMatrix{resolver: resolver, m: m}, nil
}

// LoadSimilarityMatrix читает матрицу с диска и сверяет её с набором векторов:
// контрольная сумма должна совпасть с записанной в соответствии.
func LoadSimilarityMatrix(path string, store *EmbeddingStore) (*SimilarityMatrix, error) {
	m, err := ReadMatrixFile(path)
	if err != nil {
		return nil, err
	}

	if sum := m.Checksum(); sum != store.similaritySum {
		return nil, e.Wrap(path, fmt.Errorf("%w: similarity checksum %08x, mapping %q expects %08x",
			e.ErrArtifactCorrupt, sum, store.version, store.similaritySum))
	}

	return NewSimilarityMatrix(store, m)
}

func validateSimilarity(m *Matrix, zeroRow func(i int) bool) error {
	n := m.Rows
	for i := 0; i < n; i++ {
		want := 1.0
		if zeroRow(i) {
			want = 0
		}
		if d := float64(m.At(i, i)); math.Abs(d-want) > diagTolerance {
			return fmt.Errorf("%w: S[%d][%d] = %f, expected %.0f", e.ErrArtifactCorrupt, i, i, d, want)
		}

		for j := i; j < n; j++ {
			a, b := float64(m.At(i, j)), float64(m.At(j, i))
			if math.Abs(a-b) > SymmetryTolerance {
				return fmt.Errorf("%w: S[%d][%d]=%f != S[%d][%d]=%f", e.ErrArtifactCorrupt, i, j, a, j, i, b)
			}
			if a < -1-rangeTolerance || a > 1+rangeTolerance {
				return fmt.Errorf("%w: S[%d][%d]=%f out of [-1, 1]", e.ErrArtifactCorrupt, i, j, a)
			}
		}
	}

	return nil
}

// TopKSimilar возвращает до k вещей, ближайших к itemID, без неё самой:
// по убыванию score, при равенстве по возрастанию item_id. O(N log k).
func (s *SimilarityMatrix) TopKSimilar(itemID int64, k int) ([]domain.ScoredItem, error) {
	pos, err := s.resolver.Resolve(itemID)
	if err != nil {
		return nil, err
	}

	row := s.m.Row(pos)
	top := newTopK(k)
	for j, score := range row {
		if j == pos {
			continue
		}
		top.offer(domain.ScoredItem{ItemID: s.resolver.ids[j], Score: score})
	}

	return top.result(), nil
}

// BuildSimilarity нормализует строки vectors и считает матрицу попарных косинусных близостей.
// Верхний треугольник зеркалируется, поэтому результат симметричен точно.
func BuildSimilarity(vectors *Matrix) *Matrix {
	n := vectors.Rows
	normalized := make([][]float32, n)
	for i := 0; i < n; i++ {
		normalized[i] = Normalize(vectors.Row(i))
	}

	sim := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := clamp(dot(normalized[i], normalized[j]))
			sim.Data[i*n+j] = v
			sim.Data[j*n+i] = v
		}
	}

	return sim
}

func clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
