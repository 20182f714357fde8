package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/jimlawless/whereami"
	"github.com/joho/godotenv"
)

// Источники артефактов
const (
	ArtifactSourceLocal = "local"
	ArtifactSourceMinio = "minio"
)

type Config struct {
	Minio     *MinIOCfg     `validate:"required"`
	Http      *HTTPConfig   `validate:"required"`
	Grpc      *GRPCConfig   `validate:"required"`
	Db        *PGDBCfg      `validate:"required"`
	Qdrant    *QdrantCfg    `validate:"required"`
	Redis     *RedisCfg     `validate:"required"`
	Ml        *MLServiceCfg `validate:"required"`
	Kafka     *KafkaCfg     `validate:"required"`
	Artifacts *ArtifactsCfg `validate:"required"`
	Recommend *RecommendCfg `validate:"required"`
}

// KafkaCfg — события опциональны: без KAFKA_BROKERS продюсер не создаётся.
type KafkaCfg struct {
	Enabled           bool
	InteractionsTopic string `validate:"required_if=Enabled true"`
	ArtifactsTopic    string `validate:"required_if=Enabled true"`
	Brokers           []string
	NetworkMode       string
	Partitions        int `validate:"gte=1"`
	ReplicationFactor int `validate:"gte=1"`
}

type MinIOCfg struct {
	Enabled           bool
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string `validate:"required_if=Enabled true"` // Бакет с артефактами
	ImagesBucketName  string // Бакет с фото каталога для конвейера; пусто — фото читаются с диска
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
	UploadLimit       int `validate:"gte=1"` // Лимит параллельных загрузок в S3
}

type HTTPConfig struct {
	Port         string `validate:"required,numeric"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type GRPCConfig struct {
	Port        string `validate:"required,numeric"`
	NetworkMode string `validate:"oneof=tcp tcp4 tcp6 unix"`
}

type PGDBCfg struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	DBName   string `validate:"required"`
	SSLMode  string

	MaxConns       int32
	MigrationsPath string `validate:"required"`
}

// QdrantCfg — зеркалирование векторов в Qdrant включается заданием QDRANT_HOST.
type QdrantCfg struct {
	Enabled              bool
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string `validate:"required_if=Enabled true"` // имя коллекции в Qdrant
	UseTLS               bool
	VectorSize           uint64 `validate:"gte=1"`
}

type RedisCfg struct {
	Addr             string `validate:"required"`
	Password         string
	User             string
	DB               int
	MaxRetries       int
	DialTimeout      time.Duration
	Timeout          time.Duration
	ItemTTL          time.Duration
	TextEmbeddingTTL time.Duration // 0 — без истечения
}

type MLServiceCfg struct {
	Addr          string `validate:"required"`
	MaxConcurrent int    `validate:"gte=1"`
	MaxRetries    int    `validate:"gte=1"`
	TextTimeout   time.Duration
	ProbeText     string
	StrictStartup bool // завершать процесс, если модель недоступна при старте
}

type ArtifactsCfg struct {
	Dir    string `validate:"required"`
	Source string `validate:"oneof=local minio"`
	Prefix string // префикс объектов в бакете MinIO
}

type RecommendCfg struct {
	ImageBaseURL       string `validate:"required,url"`
	DefaultSimilarK    int    `validate:"gte=1"`
	DefaultSearchTopN  int    `validate:"gte=1"`
	DefaultPopularTopN int    `validate:"gte=1"`
	DefaultUserTopN    int    `validate:"gte=1"`
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf(".env file not loaded: %v", err)
	}

	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recommend, err := loadRecommendCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	cfg := &Config{
		Minio:     minio,
		Http:      http,
		Grpc:      loadGRPCConfig(),
		Db:        db,
		Qdrant:    qdrant,
		Redis:     redis,
		Ml:        ml,
		Kafka:     kafka,
		Artifacts: loadArtifactsCfg(),
		Recommend: recommend,
	}

	if err := Validate(cfg); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return cfg, nil
}

// Validate проверяет ограничения полей и согласованность секций.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", e.ErrIncorrectEnvVariable, err)
	}

	if cfg.Artifacts.Source == ArtifactSourceMinio && !cfg.Minio.Enabled {
		return fmt.Errorf("%w: ARTIFACT_SOURCE=minio requires MINIO_ENDPOINT", e.ErrIncorrectEnvVariable)
	}

	return nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultInteractionsTopic = "outfit.interactions"
		defaultArtifactsTopic    = "outfit.artifacts"
	)

	var brokers []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Enabled:           len(brokers) > 0,
		Brokers:           brokers,
		InteractionsTopic: getEnvOrDefault("KAFKA_INTERACTIONS_TOPIC", defaultInteractionsTopic),
		ArtifactsTopic:    getEnvOrDefault("KAFKA_ARTIFACTS_TOPIC", defaultArtifactsTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL      = false
		defaultUploadLimit = 4
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	uploadLimit, err := parseIntEnv("MINIO_UPLOAD_LIMIT", defaultUploadLimit)
	if err != nil {
		log.Errorf(err, "invalid MINIO_UPLOAD_LIMIT")
		return nil, err
	}

	endpoint := getEnv("MINIO_ENDPOINT")

	return &MinIOCfg{
		Enabled:           endpoint != "",
		MinioEndpoint:     endpoint,
		BucketName:        getEnvOrDefault("BUCKET_NAME", "outfit-artifacts"),
		ImagesBucketName:  getEnv("IMAGES_BUCKET_NAME"),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		UploadLimit:       uploadLimit,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "5000"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost       = "localhost"
		defaultPort       = "5432"
		defaultSSLMode    = "disable"
		defaultMaxConns   = 10
		defaultMigrations = "db/migrations"
	)

	for _, key := range []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"} {
		if getEnv(key) == "" {
			err := fmt.Errorf("%s is required", key)
			log.Errorf(err, "missing %s", key)
			return nil, err
		}
	}

	maxConns, err := parseIntEnv("POSTGRES_MAX_CONNS", defaultMaxConns)
	if err != nil {
		log.Errorf(err, "invalid POSTGRES_MAX_CONNS")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     getEnv("POSTGRES_USER"),
		Password: getEnv("POSTGRES_PASSWORD"),
		DBName:   getEnv("POSTGRES_DB"),
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),

		MaxConns:       int32(maxConns),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrations),
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultVectorSize     = "768"
		defaultCollection     = "catalog_items"
	)

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	vectorSize, err := strconv.ParseUint(getEnvOrDefault("VECTOR_SIZE", defaultVectorSize), 10, 64)
	if err != nil {
		logger.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	host := getEnv("QDRANT_HOST")

	return &QdrantCfg{
		Enabled:              host != "",
		Host:                 host,
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultItemTTL      = 10 * time.Minute
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	itemTTL, err := parseDurationEnv("ITEM_TTL", defaultItemTTL)
	if err != nil {
		log.Errorf(err, "invalid ITEM_TTL")
		return nil, err
	}

	textTTL, err := parseDurationEnv("TEXT_EMBEDDING_TTL", 0)
	if err != nil {
		log.Errorf(err, "invalid TEXT_EMBEDDING_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:             getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:         getEnv("REDIS_PASSWORD"),
		User:             getEnv("REDIS_USER"),
		DB:               db,
		MaxRetries:       maxRetries,
		DialTimeout:      dialTimeout,
		Timeout:          timeout,
		ItemTTL:          itemTTL,
		TextEmbeddingTTL: textTTL,
	}, nil
}

func loadMLServiceCfg() (*MLServiceCfg, error) {
	const (
		defaultHost          = "ml-service"
		defaultPort          = "50051"
		defaultMaxConcurrent = 8
		defaultMaxRetries    = 3
		defaultTextTimeout   = 2 * time.Second
		defaultProbeText     = "a photo of clothing"
	)

	maxConcurrent, err := parseIntEnv("ML_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("ML_MAX_CONCURRENT", err)
	}

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("ML_MAX_RETRIES", err)
	}

	textTimeout, err := parseDurationEnv("ML_TEXT_TIMEOUT", defaultTextTimeout)
	if err != nil {
		return nil, e.Wrap("ML_TEXT_TIMEOUT", err)
	}

	strict, err := strconv.ParseBool(getEnvOrDefault("ML_STRICT_STARTUP", "false"))
	if err != nil {
		return nil, e.Wrap("ML_STRICT_STARTUP", err)
	}

	return &MLServiceCfg{
		Addr:          getEnvOrDefault("ML_HOST", defaultHost) + ":" + getEnvOrDefault("ML_PORT", defaultPort),
		MaxConcurrent: maxConcurrent,
		MaxRetries:    maxRetries,
		TextTimeout:   textTimeout,
		ProbeText:     getEnvOrDefault("ML_PROBE_TEXT", defaultProbeText),
		StrictStartup: strict,
	}, nil
}

func loadArtifactsCfg() *ArtifactsCfg {
	return &ArtifactsCfg{
		Dir:    getEnvOrDefault("ARTIFACTS_DIR", "artifacts"),
		Source: getEnvOrDefault("ARTIFACT_SOURCE", ArtifactSourceLocal),
		Prefix: getEnvOrDefault("ARTIFACT_PREFIX", "artifacts"),
	}
}

func loadRecommendCfg() (*RecommendCfg, error) {
	const (
		defaultImageBaseURL = "http://localhost:5000/data/clothes/"
		defaultSimilarK     = 3
		defaultSearchTopN   = 20
		defaultPopularTopN  = 5
		defaultUserTopN     = 5
	)

	var errs []error
	similarK, err := parseIntEnv("RECOMMEND_SIMILAR_K", defaultSimilarK)
	errs = append(errs, err)
	searchTopN, err := parseIntEnv("RECOMMEND_SEARCH_TOP_N", defaultSearchTopN)
	errs = append(errs, err)
	popularTopN, err := parseIntEnv("RECOMMEND_POPULAR_TOP_N", defaultPopularTopN)
	errs = append(errs, err)
	userTopN, err := parseIntEnv("RECOMMEND_USER_TOP_N", defaultUserTopN)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &RecommendCfg{
		ImageBaseURL:       getEnvOrDefault("IMAGE_BASE_URL", defaultImageBaseURL),
		DefaultSimilarK:    similarK,
		DefaultSearchTopN:  searchTopN,
		DefaultPopularTopN: popularTopN,
		DefaultUserTopN:    userTopN,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, fmt.Errorf("%w: %s=%q", e.ErrIncorrectEnvVariable, key, v)
	}

	return intValue, nil
}
