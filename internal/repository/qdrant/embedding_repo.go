package qdrant

import (
	"context"

	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/pkg/clients"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// upsertBatch — сколько точек отправляется одним запросом.
const upsertBatch = 256

// EmbeddingRepo зеркалирует векторы каталога в коллекцию Qdrant
type EmbeddingRepo struct {
	client *clients.QdrantClient
}

func NewEmbeddingRepo(client *clients.QdrantClient) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
	}
}

// EnsureCollection создаёт коллекцию под размерность текущих артефактов.
func (q *EmbeddingRepo) EnsureCollection(ctx context.Context, dim int) error {
	if err := clients.EnsureCollection(ctx, q.client, uint64(dim)); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Upsert сохраняет или обновляет embedding-векторы пачками.
func (q *EmbeddingRepo) Upsert(ctx context.Context, vectors []domain.Embedding) error {
	for start := 0; start < len(vectors); start += upsertBatch {
		end := min(start+upsertBatch, len(vectors))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, vector := range vectors[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(vector.ID),
				Vectors: qdrant.NewVectors(vector.Vector...),
				Payload: qdrant.NewValueMap(vector.Payload),
			})
		}

		wait := true
		if _, err := q.client.Client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.client.Collection,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}
