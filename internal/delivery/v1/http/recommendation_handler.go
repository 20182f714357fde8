package http

import (
	"net/http"
	"strings"

	"github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type RecommendationHandler struct {
	recUC    usecase.RecommendationUC
	defaults *cfg.RecommendCfg
	logger   logger.Logger
}

func NewRecommendationHandler(recUC usecase.RecommendationUC, defaults *cfg.RecommendCfg, logger logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{recUC: recUC, defaults: defaults, logger: logger}
}

// similarItems
//
//	@Summary		Похожие вещи
//	@Description	Возвращает k визуально похожих вещей по предвычисленной матрице близости
//	@Tags			recommend
//	@Produce		json
//	@Param			id		path		int				true	"ID вещи"
//	@Param			top_n	query		int				false	"Количество (по умолчанию 3)"
//	@Success		200		{object}	SimilarResponse
//	@Failure		404		{object}	ErrorResponse	"Вещь не найдена"
//	@Failure		500		{object}	ErrorResponse	"Внутренняя ошибка"
//	@Failure		503		{object}	ErrorResponse	"Матрица близости не загружена (similar_unavailable)"
//	@Router			/recommend/{id} [get]
func (h *RecommendationHandler) similarItems(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	k, err := parseTopN(r, "top_n", h.defaults.DefaultSimilarK)
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	res, err := h.recUC.SimilarItems(r.Context(), &usecase.SimilarItemsReq{ItemID: id, K: k})
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, SimilarResponse{Recommendations: toItemLinks(res.Items)})
}

// popular
//
//	@Summary		Популярные вещи
//	@Description	Вещи с наибольшим числом просмотров
//	@Tags			recommend
//	@Produce		json
//	@Param			top_n	query		int	false	"Количество (по умолчанию 5)"
//	@Success		200		{object}	PopularResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/recommend/popular [get]
func (h *RecommendationHandler) popular(w http.ResponseWriter, r *http.Request) {
	topN, err := parseTopN(r, "top_n", h.defaults.DefaultPopularTopN)
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	res, err := h.recUC.Popular(r.Context(), &usecase.PopularReq{TopN: topN})
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, PopularResponse{RecommendedPopular: toCategorizedItems(res.Items)})
}

// userRecommendations
//
//	@Summary		Персональные рекомендации
//	@Description	Коллаборативная фильтрация по истории просмотров похожих пользователей
//	@Tags			recommend
//	@Produce		json
//	@Param			user_id	path		int				true	"ID пользователя"
//	@Param			top_n	query		int				false	"Количество (по умолчанию 5)"
//	@Success		200		{object}	PersonalizedResponse
//	@Failure		404		{object}	ErrorResponse	"Нет истории"
//	@Router			/recommend/user/{user_id} [get]
func (h *RecommendationHandler) userRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "user_id"))
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	topN, err := parseTopN(r, "top_n", h.defaults.DefaultUserTopN)
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	res, err := h.recUC.CollaborativeForUser(r.Context(), &usecase.UserRecommendationsReq{UserID: userID, TopN: topN})
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	out := PersonalizedResponse{PersonalizedRecommendations: toCategorizedItems(res.Items)}
	if len(out.PersonalizedRecommendations) == 0 {
		out.Message = "No similar users found."
	}

	WriteSuccess(w, http.StatusOK, out)
}

// search
//
//	@Summary		Поиск по описанию
//	@Description	Семантический поиск вещей по свободному тексту.
//	@Description	Если модель или векторы каталога недоступны, ответ 503 search_unavailable; таймаут модели даёт 504 model_timeout.
//	@Description	Прочие внутренние ошибки дают 500 internal.
//	@Tags			search
//	@Produce		json
//	@Param			query	query		string			true	"Текст запроса"
//	@Param			top_n	query		int				false	"Количество (по умолчанию 20)"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse	"Пустой запрос"
//	@Failure		500		{object}	ErrorResponse	"Внутренняя ошибка"
//	@Failure		503		{object}	ErrorResponse	"Модель или векторы недоступны (search_unavailable)"
//	@Failure		504		{object}	ErrorResponse	"Таймаут модели (model_timeout)"
//	@Router			/search [get]
func (h *RecommendationHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		writeFailure(h.logger, w, r, e.ErrEmptyQuery)
		return
	}

	topN, err := parseTopN(r, "top_n", h.defaults.DefaultSearchTopN)
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	res, err := h.recUC.TextSearch(r.Context(), &usecase.TextSearchReq{Query: query, TopN: topN})
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	out := SearchResponse{Items: toSearchItems(res.Items)}
	if len(out.Items) == 0 {
		out.Message = "No matching items found"
	}

	WriteSuccess(w, http.StatusOK, out)
}

// health
//
//	@Summary		Состояние режимов
//	@Tags			service
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/healthz [get]
func (h *RecommendationHandler) health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, toHealthResponse(h.recUC.Health()))
}
