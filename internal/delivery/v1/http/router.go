package http

import (
	"net/http"
	"strconv"
	"time"

	_ "github.com/DRSN-tech/outfit-recsys/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/internal/metrics"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(recUC usecase.RecommendationUC, historyUC usecase.HistoryUC, defaults *cfg.RecommendCfg) {
	r.router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, instrument)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.router.Handle("/metrics", promhttp.Handler())

	recHandler := NewRecommendationHandler(recUC, defaults, r.logger)
	r.router.Get("/healthz", recHandler.health)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerRecommendationRoutes(v1, recHandler)
		registerHistoryRoutes(v1, NewHistoryHandler(historyUC, r.logger))
	})
}

func registerRecommendationRoutes(router chi.Router, h *RecommendationHandler) {
	router.Route("/recommend", func(rec chi.Router) {
		rec.Get("/popular", h.popular)
		rec.Get("/user/{user_id}", h.userRecommendations)
		rec.Get("/{id}", h.similarItems)
	})
	router.Get("/search", h.search)
}

func registerHistoryRoutes(router chi.Router, h *HistoryHandler) {
	router.Post("/add-history", h.addHistory)
	router.Get("/get-history", h.getHistory)
}

// instrument пишет метрики запросов с шаблоном маршрута вместо пути, чтобы не раздувать кардинальность.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
