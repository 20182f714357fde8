package usecase

import "context"

type MlServiceInfra interface {
	VectorizeRequest(ctx context.Context, req *VectorizeReq) ([]VectorizeRes, error)
	EmbedText(ctx context.Context, text string) (*VectorizeRes, error)
}

type ArtifactsInfra interface {
	PublishArtifacts(ctx context.Context, req *PublishArtifactsReq) (*PublishArtifactsRes, error)
	FetchLatest(ctx context.Context, dir string) (string, error)
}

type EventProducer interface {
	WriteInteraction(ctx context.Context, req *InteractionEvent) error
	WriteArtifactPublished(ctx context.Context, req *ArtifactPublishedEvent) error
}

// QueryEncoder переводит текст запроса в пространство векторов каталога.
type QueryEncoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Available() error
}

// ImageURLFormatter строит публичный URL по пути к фото в каталоге.
type ImageURLFormatter interface {
	URL(imagePath string) string
}
