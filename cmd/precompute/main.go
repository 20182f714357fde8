package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/outfit-recsys/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/outfit-recsys/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/outfit-recsys/internal/pipeline"
	"github.com/DRSN-tech/outfit-recsys/internal/proto"
	s3Repo "github.com/DRSN-tech/outfit-recsys/internal/repository/minio"
	"github.com/DRSN-tech/outfit-recsys/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/outfit-recsys/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/outfit-recsys/internal/repository/qdrant"
	"github.com/DRSN-tech/outfit-recsys/pkg/clients"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/DRSN-tech/outfit-recsys/pkg/postgres"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type runOptions struct {
	outDir     string
	imagesRoot string
	batchSize  int
	version    string
	publish    bool
	mirror     bool
	announce   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:           "precompute",
		Short:         "Build catalog embeddings, the similarity matrix and the index mapping",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.outDir, "out", "", "output directory (default: ARTIFACTS_DIR)")
	flags.StringVar(&opts.imagesRoot, "images-root", ".", "directory that catalog image paths are relative to")
	flags.IntVar(&opts.batchSize, "batch", 16, "images per vectorization request")
	flags.StringVar(&opts.version, "version", "", "artifact set version (default: timestamp + random suffix)")
	flags.BoolVar(&opts.publish, "publish", false, "upload the artifact set to MinIO and move the latest pointer")
	flags.BoolVar(&opts.mirror, "mirror", false, "mirror catalog vectors into Qdrant")
	flags.BoolVar(&opts.announce, "announce", false, "announce the new artifact set on Kafka")

	root.AddCommand(newFetchCmd())

	return root
}

func newFetchCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the latest published artifact set from MinIO",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.NewLogger()
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Artifacts.Dir
			}

			infra, err := newArtifactsInfra(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			version, err := infra.FetchLatest(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "target directory (default: ARTIFACTS_DIR)")

	return cmd
}

func runPipeline(ctx context.Context, opts *runOptions) error {
	log := logger.NewLogger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(log)
	if err != nil {
		return err
	}
	if opts.outDir == "" {
		opts.outDir = cfg.Artifacts.Dir
	}

	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		return err
	}
	defer db.Close()

	conn, err := grpc.NewClient(cfg.Ml.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ml := ml_service.NewMLService(proto.NewMachineLearningServiceClient(conn), cfg.Ml.MaxConcurrent, cfg.Ml.MaxRetries, log)
	catalog := pgdb.NewCatalogRepo(db.Pool, pgdbConv.NewCatalogConverter())

	var images pipeline.ImageSource = pipeline.NewLocalImages(opts.imagesRoot)
	if cfg.Minio.Enabled && cfg.Minio.ImagesBucketName != "" {
		mc, err := clients.NewMinIOClient(cfg.Minio)
		if err != nil {
			return err
		}
		images = pipeline.NewObjectImages(s3Repo.NewObjectRepo(mc, cfg.Minio.ImagesBucketName))
	}

	p := pipeline.NewPipeline(catalog, images, ml, pipeline.Config{
		OutDir:    opts.outDir,
		BatchSize: opts.batchSize,
		Version:   opts.version,
	}, log)

	if opts.publish {
		infra, err := newArtifactsInfra(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer waitCleanup(infra, log)
		p.WithPublisher(infra)
	}

	if opts.mirror {
		if !cfg.Qdrant.Enabled {
			return fmt.Errorf("--mirror requires QDRANT_HOST")
		}
		qc, err := clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			return err
		}
		defer qc.Close()
		p.WithMirror(qdrantRepo.NewEmbeddingRepo(qc))
	}

	if opts.announce {
		if !cfg.Kafka.Enabled {
			return fmt.Errorf("--announce requires KAFKA_BROKERS")
		}
		producer := kafka.NewProducer(log, cfg.Kafka)
		if err := producer.EnsureTopics(5 * time.Second); err != nil {
			log.Warnf("Kafka topics are not ready: %v", err)
		}
		defer producer.Close()
		p.WithEvents(producer)
	}

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	log.Infof("artifact set %s: %d of %d items embedded (dim %d, model %s), published=%d objects, mirrored=%t, announced=%t",
		report.Version, report.Embedded, report.Total, report.Dimension, report.ModelVersion, len(report.Keys), report.Mirrored, report.Announced)
	return nil
}

func newArtifactsInfra(ctx context.Context, cfg *config.Config, log logger.Logger) (*minioInfra.MinioInfrastructure, error) {
	if !cfg.Minio.Enabled {
		return nil, fmt.Errorf("MinIO is not configured: set MINIO_ENDPOINT")
	}

	mc, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, err
	}
	if err := clients.EnsureBucket(ctx, mc, cfg.Minio.BucketName); err != nil {
		return nil, err
	}

	repo := s3Repo.NewObjectRepo(mc, cfg.Minio.BucketName)
	return minioInfra.NewMinioInfrastructure(repo, cfg.Artifacts.Prefix, cfg.Minio.UploadLimit, log, context.Background()), nil
}

func waitCleanup(infra *minioInfra.MinioInfrastructure, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := infra.WaitForCleanup(ctx); err != nil {
		log.Warnf("%v", err)
	}
}
