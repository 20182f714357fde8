package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Артефакты (фатальны при старте для similar/search режимов)
	ErrArtifactMissing = fmt.Errorf("artifact missing")
	ErrArtifactCorrupt = fmt.Errorf("artifact corrupt")

	// Идентификация товаров
	ErrItemNotIndexed = fmt.Errorf("item has no precomputed embedding")
	ErrUnknownItem    = fmt.Errorf("unknown catalog item")
	ErrItemNotFound   = fmt.Errorf("item not found")

	// Модель
	ErrModelUnavailable  = fmt.Errorf("embedding model unavailable")
	ErrModelTimeout      = fmt.Errorf("embedding model timeout")
	ErrModelTransient    = fmt.Errorf("embedding model transient failure")
	ErrDimensionMismatch = fmt.Errorf("embedding dimension mismatch")

	// Режимы рекомендаций
	ErrSearchUnavailable  = fmt.Errorf("search unavailable")
	ErrSimilarUnavailable = fmt.Errorf("similar items unavailable")
	ErrNoHistory          = fmt.Errorf("no history found for this user")

	// Внутренние ошибки с векторами
	ErrEmptyVectors         = fmt.Errorf("empty vectors")
	ErrVectorEmbeddingEmpty = fmt.Errorf("vector embedding is empty")
	ErrImageVectorMismatch  = fmt.Errorf("image vector mismatch")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrEmptyQuery           = fmt.Errorf("query parameter is required")
	ErrInvalidTopN          = fmt.Errorf("top_n must be a positive integer")
	ErrInvalidID            = fmt.Errorf("id must be an integer")
	ErrMissingFields        = fmt.Errorf("missing user_id or item_id")
	ErrExpectedJSON         = fmt.Errorf("invalid request: expected JSON")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")

	// 500
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
