package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/pkg/clients"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// EmbeddingCacheRepo хранит векторы текстовых запросов, общие для всех реплик.
// Вектор записывается как little-endian float32.
type EmbeddingCacheRepo struct {
	client *clients.RedisClient
	cfg    *cfg.RedisCfg
}

func NewEmbeddingCacheRepo(client *clients.RedisClient, cfg *cfg.RedisCfg) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{
		client: client,
		cfg:    cfg,
	}
}

// GetVector возвращает вектор по ключу; ok=false при промахе.
func (c *EmbeddingCacheRepo) GetVector(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, false, nil
		}
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	v, err := decodeVector(data)
	if err != nil {
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	return v, true, nil
}

// SetVector записывает вектор. TTL 0 — без истечения.
func (c *EmbeddingCacheRepo) SetVector(ctx context.Context, key string, vector []float32) error {
	if err := c.client.Client.Set(ctx, key, encodeVector(vector), c.cfg.TextEmbeddingTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}

	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("cached vector has %d bytes, not a multiple of 4", len(data))
	}

	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}

	return v, nil
}
