package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding представляет эмбеддинг одной вещи каталога
type Embedding struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbedding(id string, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

func NewPayload(itemID int64, category Category, imagePath string, position int, artifactVersion string, modelVersion string) Payload {
	return Payload{
		"item_id":          itemID,
		"category":         category.String(),
		"image_path":       imagePath,
		"position":         int64(position),
		"artifact_version": artifactVersion,
		"model_version":    modelVersion,
		"created_at":       time.Now().UTC().UnixNano(),
	}
}

// ScoredItem — вещь каталога с оценкой близости.
type ScoredItem struct {
	ItemID int64
	Score  float32
}

var embeddingNamespace = uuid.MustParse("6f1c7a52-3f7e-4c39-9a0b-2d8e5b4c1a90")

// EmbeddingID — детерминированный идентификатор точки для вещи:
// повторная публикация перезаписывает ту же точку, а не создаёт новую.
func EmbeddingID(itemID int64) string {
	return uuid.NewSHA1(embeddingNamespace, []byte(strconv.FormatInt(itemID, 10))).String()
}
