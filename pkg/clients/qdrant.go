package clients

import (
	"context"
	"fmt"

	config "github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client     *qdrant.Client
	Collection string
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client:     qdrantClient,
		Collection: cfg.QdrantCollectionName,
	}, nil
}

// EnsureCollection создаёт коллекцию с косинусной метрикой, если её нет.
// Размерность берётся из артефактов, а не из конфигурации.
func EnsureCollection(ctx context.Context, client *QdrantClient, dim uint64) error {
	exists, err := client.Client.CollectionExists(ctx, client.Collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: client.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	return nil
}

func (q *QdrantClient) Close() error {
	return q.Client.Close()
}
