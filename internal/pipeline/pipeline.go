// Package pipeline — офлайн-предвычисление артефактов: векторы каталога,
// матрица близости и соответствие item_id <-> позиция.
package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/artifact"
	"github.com/DRSN-tech/outfit-recsys/internal/domain"
	"github.com/DRSN-tech/outfit-recsys/internal/infrastructure"
	"github.com/DRSN-tech/outfit-recsys/internal/metrics"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/google/uuid"
)

const defaultBatchSize = 16

type Config struct {
	OutDir    string
	BatchSize int
	Dimension int    // 0 — берётся из первого полученного вектора
	Version   string // пусто — генерируется
}

// Report — итог прогона.
type Report struct {
	Version      string
	ModelVersion string
	Dimension    int
	Total        int
	Embedded     int
	Skipped      int
	Keys         []string
	Mirrored     bool
	Announced    bool // брокер подтвердил событие о наборе
}

// Pipeline строит набор артефактов. publisher, mirror и events необязательны.
type Pipeline struct {
	catalog   usecase.CatalogRepository
	images    ImageSource
	model     usecase.MlServiceInfra
	publisher usecase.ArtifactsInfra
	mirror    usecase.EmbeddingRepository
	events    usecase.EventProducer
	cfg       Config
	logger    logger.Logger
}

func NewPipeline(catalog usecase.CatalogRepository, images ImageSource, model usecase.MlServiceInfra,
	cfg Config, logger logger.Logger) *Pipeline {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Pipeline{
		catalog: catalog,
		images:  images,
		model:   model,
		cfg:     cfg,
		logger:  logger,
	}
}

func (p *Pipeline) WithPublisher(publisher usecase.ArtifactsInfra) *Pipeline {
	p.publisher = publisher
	return p
}

func (p *Pipeline) WithMirror(mirror usecase.EmbeddingRepository) *Pipeline {
	p.mirror = mirror
	return p
}

func (p *Pipeline) WithEvents(events usecase.EventProducer) *Pipeline {
	p.events = events
	return p
}

// embedded — вещь, для которой получен вектор.
type embedded struct {
	item   domain.CatalogItem
	vector []float32
}

// Run выполняет полный прогон. Вещи, фото которых не читается или не векторизуется,
// пропускаются и не попадают в соответствие.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	const op = "Pipeline.Run"

	items, err := p.catalog.ListItems(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	slices.SortFunc(items, func(a, b domain.CatalogItem) int { return cmp.Compare(a.ID, b.ID) })

	report := &Report{Version: p.cfg.Version, Total: len(items), Dimension: p.cfg.Dimension}
	if report.Version == "" {
		report.Version = NewVersion(time.Now())
	}
	p.logger.Infof("%s: building artifact set %s from %d catalog items", op, report.Version, len(items))

	loaded, byID := p.loadImages(ctx, items)

	results, err := p.embed(ctx, loaded, byID, report)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	report.Embedded = len(results)
	report.Skipped = report.Total - report.Embedded

	if len(results) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: no catalog item could be embedded", e.ErrEmptyVectors))
	}

	mapping, vectors := buildArtifacts(results, report)
	if err := os.MkdirAll(p.cfg.OutDir, 0o755); err != nil {
		return nil, e.Wrap(op, err)
	}
	if err := artifact.Write(artifact.NewLayout(p.cfg.OutDir), mapping, vectors, artifact.BuildSimilarity(vectors)); err != nil {
		return nil, e.Wrap(op, err)
	}
	p.logger.Infof("%s: wrote %d items (dim %d) to %s, skipped %d", op, report.Embedded, report.Dimension, p.cfg.OutDir, report.Skipped)

	if p.publisher != nil {
		res, err := p.publisher.PublishArtifacts(ctx, usecase.NewPublishArtifactsReq(report.Version, p.cfg.OutDir, artifact.Files()))
		if err != nil {
			return report, e.Wrap(op, err)
		}
		report.Keys = res.Keys
	}

	if p.mirror != nil {
		if err := p.mirrorVectors(ctx, results, report); err != nil {
			p.logger.Warnf("%s: vector mirror failed: %v", op, err)
		} else {
			report.Mirrored = true
		}
	}

	if p.events != nil {
		if err := p.events.WriteArtifactPublished(ctx, &usecase.ArtifactPublishedEvent{
			Version:      report.Version,
			ModelVersion: report.ModelVersion,
			Items:        report.Embedded,
			Dimension:    report.Dimension,
			Keys:         report.Keys,
		}); err != nil {
			p.logger.Warnf("%s: announce failed: %v", op, err)
		} else {
			report.Announced = true
		}
	}

	return report, nil
}

func (p *Pipeline) loadImages(ctx context.Context, items []domain.CatalogItem) ([]usecase.CatalogImage, map[int64]domain.CatalogItem) {
	loaded := make([]usecase.CatalogImage, 0, len(items))
	byID := make(map[int64]domain.CatalogItem, len(items))

	for _, item := range items {
		mime, err := infrastructure.GetMIMEFromPath(item.ImagePath)
		if err != nil {
			p.skip("load_failed", "item %d (%s): %v", item.ID, item.ImagePath, err)
			continue
		}

		data, err := p.images.Read(ctx, item.ImagePath)
		if err != nil {
			p.skip("load_failed", "item %d (%s): %v", item.ID, item.ImagePath, err)
			continue
		}

		loaded = append(loaded, usecase.CatalogImage{ItemID: item.ID, Data: data, MimeType: mime})
		byID[item.ID] = item
	}

	return loaded, byID
}

// embed векторизует фото пачками; упавшая пачка повторяется поштучно, чтобы одна битая картинка не теряла соседей.
func (p *Pipeline) embed(ctx context.Context, images []usecase.CatalogImage, byID map[int64]domain.CatalogItem,
	report *Report) ([]embedded, error) {
	results := make([]embedded, 0, len(images))

	accept := func(img usecase.CatalogImage, res usecase.VectorizeRes) {
		if len(res.Vector) == 0 {
			p.skip("embed_failed", "item %d: %v", img.ItemID, e.ErrVectorEmbeddingEmpty)
			return
		}
		if report.Dimension == 0 {
			report.Dimension = len(res.Vector)
		}
		if len(res.Vector) != report.Dimension {
			p.skip("dimension_mismatch", "item %d: %v: got %d, want %d", img.ItemID, e.ErrDimensionMismatch, len(res.Vector), report.Dimension)
			return
		}
		if report.ModelVersion == "" {
			report.ModelVersion = res.ModelVersion
		}

		metrics.PipelineItems.WithLabelValues("embedded").Inc()
		results = append(results, embedded{item: byID[img.ItemID], vector: res.Vector})
	}

	for start := 0; start < len(images); start += p.cfg.BatchSize {
		batch := images[start:min(start+p.cfg.BatchSize, len(images))]

		res, err := p.model.VectorizeRequest(ctx, usecase.NewVectorizeReq(batch))
		if err == nil && len(res) != len(batch) {
			err = fmt.Errorf("%w: %d images, %d vectors", e.ErrImageVectorMismatch, len(batch), len(res))
		}
		if err == nil {
			for i, img := range batch {
				accept(img, res[i])
			}
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.logger.Warnf("batch at %d failed, retrying one by one: %v", start, err)

		for _, img := range batch {
			single, err := p.model.VectorizeRequest(ctx, usecase.NewVectorizeReq([]usecase.CatalogImage{img}))
			if err == nil && len(single) != 1 {
				err = fmt.Errorf("%w: 1 image, %d vectors", e.ErrImageVectorMismatch, len(single))
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				p.skip("embed_failed", "item %d: %v", img.ItemID, err)
				continue
			}
			accept(img, single[0])
		}
	}

	return results, nil
}

// buildArtifacts упорядочивает строки по item_id и нормализует векторы.
func buildArtifacts(results []embedded, report *Report) (*artifact.IndexMapping, *artifact.Matrix) {
	slices.SortFunc(results, func(a, b embedded) int { return cmp.Compare(a.item.ID, b.item.ID) })

	mapping := &artifact.IndexMapping{
		SchemaVersion: artifact.MappingSchemaVersion,
		Version:       report.Version,
		ModelVersion:  report.ModelVersion,
		Dimension:     report.Dimension,
		CreatedAt:     time.Now().UTC(),
		Items:         make([]artifact.MappedItem, len(results)),
	}
	vectors := artifact.NewMatrix(len(results), report.Dimension)

	for i, r := range results {
		mapping.Items[i] = artifact.MappedItem{
			Position:  i,
			ItemID:    r.item.ID,
			Category:  r.item.Category.String(),
			ImagePath: r.item.ImagePath,
		}
		copy(vectors.Row(i), artifact.Normalize(r.vector))
	}

	return mapping, vectors
}

func (p *Pipeline) mirrorVectors(ctx context.Context, results []embedded, report *Report) error {
	if err := p.mirror.EnsureCollection(ctx, report.Dimension); err != nil {
		return err
	}

	points := make([]domain.Embedding, len(results))
	for i, r := range results {
		payload := domain.NewPayload(r.item.ID, r.item.Category, r.item.ImagePath, i, report.Version, report.ModelVersion)
		points[i] = *domain.NewEmbedding(domain.EmbeddingID(r.item.ID), artifact.Normalize(r.vector), payload)
	}

	return p.mirror.Upsert(ctx, points)
}

func (p *Pipeline) skip(result string, format string, args ...any) {
	metrics.PipelineItems.WithLabelValues(result).Inc()
	p.logger.Warnf("skipping "+format, args...)
}

// NewVersion — версия набора: время сборки и короткий случайный суффикс.
func NewVersion(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}
