package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/artifact"
	config "github.com/DRSN-tech/outfit-recsys/internal/cfg"
	v1Grpc "github.com/DRSN-tech/outfit-recsys/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/outfit-recsys/internal/delivery/v1/http"
	"github.com/DRSN-tech/outfit-recsys/internal/encoder"
	"github.com/DRSN-tech/outfit-recsys/internal/infrastructure"
	"github.com/DRSN-tech/outfit-recsys/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/outfit-recsys/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/outfit-recsys/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/outfit-recsys/internal/proto"
	s3Repo "github.com/DRSN-tech/outfit-recsys/internal/repository/minio"
	"github.com/DRSN-tech/outfit-recsys/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/outfit-recsys/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/outfit-recsys/internal/repository/redis"
	redisConv "github.com/DRSN-tech/outfit-recsys/internal/repository/redis/converter"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/closer"
	"github.com/DRSN-tech/outfit-recsys/pkg/clients"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/DRSN-tech/outfit-recsys/pkg/postgres"
	"github.com/DRSN-tech/outfit-recsys/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	topicTimeout    = 5 * time.Second
)

// App — процесс сервиса рекомендаций: всё состояние процесса собирается здесь и передаётся явно.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	closer  *closer.Closer
	httpSrv *v1Http.Server
	grpcSrv *v1Grpc.GRPCServer
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &App{
		cfg:    cfg,
		logger: log,
		closer: closer.NewCloser(0),
	}

	if err := a.init(ctx); err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if cerr := a.closer.Close(closeCtx); cerr != nil {
			log.Warnf("cleanup after failed start: %v", cerr)
		}
		return nil, err
	}

	return a, nil
}

func (a *App) init(ctx context.Context) error {
	db, err := initPGDB(ctx, a.logger, a.cfg)
	if err != nil {
		return err
	}
	a.closer.Add("postgres", func(context.Context) error {
		db.Close()
		return nil
	})

	catalogRepo := pgdb.NewCatalogRepo(db.Pool, pgdbConv.NewCatalogConverter())
	interactionRepo := pgdb.NewInteractionRepo(db.Pool, pgdbConv.NewInteractionConverter())
	transactor := tr.NewTransactor(db.Pool)

	cacheRepo, sharedCache := a.initRedis(ctx)

	if a.cfg.Artifacts.Source == config.ArtifactSourceMinio {
		a.fetchArtifacts(ctx)
	}

	set := artifact.Load(artifact.NewLayout(a.cfg.Artifacts.Dir))
	artifacts := newArtifacts(set)

	conn, err := grpc.NewClient(
		a.cfg.Ml.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()), // ML-сервис доступен только внутри кластера
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("ml-service conn", func(context.Context) error { return conn.Close() })

	ml := ml_service.NewMLService(proto.NewMachineLearningServiceClient(conn), a.cfg.Ml.MaxConcurrent, a.cfg.Ml.MaxRetries, a.logger)

	encCfg := encoder.Config{Timeout: a.cfg.Ml.TextTimeout, ProbeText: a.cfg.Ml.ProbeText}
	if set.Store != nil {
		encCfg.Dimension = set.Store.Dim()
	}
	textEncoder := encoder.NewTextEncoder(ml, sharedCache, encCfg, a.logger)
	if err := textEncoder.Start(ctx); err != nil {
		if a.cfg.Ml.StrictStartup {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		a.logger.Warnf("embedding model is not ready, text search stays disabled: %v", err)
	}

	var events usecase.EventProducer
	if a.cfg.Kafka.Enabled {
		producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
		if err := producer.EnsureTopics(topicTimeout); err != nil {
			a.logger.Warnf("Kafka topics are not ready: %v", err)
		}
		a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })
		events = producer
	}

	urls := infrastructure.NewImageURLs(a.cfg.Recommend.ImageBaseURL)
	recUC := usecase.NewRecommendationUC(artifacts, textEncoder, catalogRepo, cacheRepo, interactionRepo, urls, a.logger)
	historyUC := usecase.NewHistoryUC(interactionRepo, catalogRepo, cacheRepo, transactor, events, urls, a.logger)

	a.grpcSrv = v1Grpc.NewGRPCServer(a.cfg.Grpc, a.logger)
	a.grpcSrv.RegisterServices(recUC, a.cfg.Recommend)

	r := chi.NewRouter()
	v1Http.NewRouter(r, a.logger).Init(recUC, historyUC, a.cfg.Recommend)
	a.httpSrv = v1Http.NewServer(r, a.cfg.Http, a.logger)

	return nil
}

// initRedis возвращает кэши или nil-интерфейсы, если Redis недоступен: без кэша сервис работает медленнее, но корректно.
func (a *App) initRedis(ctx context.Context) (usecase.CacheRepository, encoder.SharedCache) {
	redisClient := clients.NewRedisClient(a.cfg.Redis)
	if err := redisClient.Ping(ctx); err != nil {
		a.logger.Warnf("Redis unavailable, running without cache: %v", err)
		_ = redisClient.Close()
		return nil, nil
	}
	a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })

	return redis.NewCacheRepo(redisClient, redisConv.NewItemInfoConverter(), a.cfg.Redis, a.logger),
		redis.NewEmbeddingCacheRepo(redisClient, a.cfg.Redis)
}

// fetchArtifacts скачивает последний опубликованный набор. При ошибке остаются файлы на диске, если они есть.
func (a *App) fetchArtifacts(ctx context.Context) {
	minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize minio client")
		return
	}

	repo := s3Repo.NewObjectRepo(minioClient, a.cfg.Minio.BucketName)
	infra := minioInfra.NewMinioInfrastructure(repo, a.cfg.Artifacts.Prefix, a.cfg.Minio.UploadLimit, a.logger, context.Background())

	version, err := infra.FetchLatest(ctx, a.cfg.Artifacts.Dir)
	if err != nil {
		a.logger.Errorf(err, "failed to fetch artifacts from MinIO, using local copy")
		return
	}
	a.logger.Infof("Artifact set %s fetched into %s", version, a.cfg.Artifacts.Dir)
}

// newArtifacts переносит загруженный набор в usecase. Интерфейсы заполняются только при успешной загрузке:
// nil-указатель в интерфейсе выглядел бы как доступный индекс.
func newArtifacts(set *artifact.Set) usecase.Artifacts {
	a := usecase.Artifacts{
		VectorsErr:    set.StoreErr,
		SimilarityErr: set.SimilarityErr,
	}
	if set.Store != nil {
		a.Vectors = set.Store
		a.Version = set.Store.Resolver().Version()
	}
	if set.Similarity != nil {
		a.Similarity = set.Similarity
	}

	return a
}

func (a *App) Run() error {
	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.closer.Add("grpc server", a.grpcSrv.Stop)
	a.closer.Add("http server", a.httpSrv.Stop)

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
