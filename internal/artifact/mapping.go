package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/goccy/go-json"
)

// MappingSchemaVersion — версия схемы файла соответствия.
const MappingSchemaVersion = 2

// IndexMapping — версионированное соответствие item_id <-> позиция в артефактах.
// Сохраняется рядом с матрицами и является единственным источником порядка строк.
type IndexMapping struct {
	SchemaVersion int          `json:"schema_version"`
	Version       string       `json:"version"`
	ModelVersion  string       `json:"model_version"`
	Dimension     int          `json:"dimension"`
	CreatedAt     time.Time    `json:"created_at"`
	Checksums     *Checksums   `json:"checksums"`
	Items         []MappedItem `json:"items"`
}

// Checksums — CRC32 данных матриц, записанных вместе с этим соответствием.
// Матрица из другого прогона не пройдёт сверку даже при совпадении формы.
type Checksums struct {
	Embeddings uint32 `json:"embeddings"`
	Similarity uint32 `json:"similarity"`
}

// MappedItem — одна строка артефактов.
type MappedItem struct {
	Position  int    `json:"position"`
	ItemID    int64  `json:"item_id"`
	Category  string `json:"category"`
	ImagePath string `json:"image_path"`
}

// Validate проверяет, что позиции идут подряд с нуля, а item_id уникальны.
func (m *IndexMapping) Validate() error {
	if m.SchemaVersion != MappingSchemaVersion {
		return fmt.Errorf("%w: unsupported mapping schema version %d", e.ErrArtifactCorrupt, m.SchemaVersion)
	}

	if m.Dimension <= 0 {
		return fmt.Errorf("%w: mapping dimension must be positive, got %d", e.ErrArtifactCorrupt, m.Dimension)
	}

	if m.Checksums == nil {
		return fmt.Errorf("%w: mapping %q has no matrix checksums", e.ErrArtifactCorrupt, m.Version)
	}

	seen := make(map[int64]int, len(m.Items))
	for i, item := range m.Items {
		if item.Position != i {
			return fmt.Errorf("%w: mapping position %d at row %d", e.ErrArtifactCorrupt, item.Position, i)
		}
		if prev, ok := seen[item.ItemID]; ok {
			return fmt.Errorf("%w: item %d mapped to rows %d and %d", e.ErrArtifactCorrupt, item.ItemID, prev, i)
		}
		seen[item.ItemID] = i
	}

	return nil
}

// Len — количество строк в артефактах.
func (m *IndexMapping) Len() int {
	return len(m.Items)
}

// Encode сериализует соответствие в JSON.
func (m *IndexMapping) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// ReadMappingFile читает и валидирует файл соответствия.
func ReadMappingFile(path string) (*IndexMapping, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", e.ErrArtifactMissing, path)
		}
		return nil, e.Wrap(path, err)
	}

	var m IndexMapping
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, e.Wrap(path, fmt.Errorf("%w: %v", e.ErrArtifactCorrupt, err))
	}

	if err := m.Validate(); err != nil {
		return nil, e.Wrap(path, err)
	}

	return &m, nil
}

// WriteMappingFile атомарно записывает файл соответствия.
func WriteMappingFile(path string, m *IndexMapping) error {
	return writeFileAtomic(path, m.Encode)
}
