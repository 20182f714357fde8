package artifact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestMapping строит соответствие для ids в заданном порядке строк.
func newTestMapping(dim int, ids ...int64) *IndexMapping {
	m := &IndexMapping{
		SchemaVersion: MappingSchemaVersion,
		Version:       "test-v1",
		ModelVersion:  "clip-test",
		Dimension:     dim,
		CreatedAt:     time.Date(2025, 3, 19, 0, 0, 0, 0, time.UTC),
		Checksums:     &Checksums{},
	}
	for i, id := range ids {
		m.Items = append(m.Items, MappedItem{Position: i, ItemID: id, Category: "top"})
	}

	return m
}

func matrixOf(rows [][]float32) *Matrix {
	if len(rows) == 0 {
		return NewMatrix(0, 0)
	}

	m := NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		copy(m.Row(i), r)
	}

	return m
}

// writeTestSet записывает согласованный набор артефактов и возвращает Layout.
func writeTestSet(t *testing.T, ids []int64, vectors [][]float32) Layout {
	t.Helper()

	l := NewLayout(t.TempDir())
	emb := matrixOf(vectors)
	require.NoError(t, Write(l, newTestMapping(emb.Cols, ids...), emb, BuildSimilarity(emb)))

	return l
}
