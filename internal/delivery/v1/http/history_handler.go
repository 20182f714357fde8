package http

import (
	"mime"
	"net/http"

	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/goccy/go-json"
)

// maxHistoryBody — тело add-history состоит из двух чисел.
const maxHistoryBody = 4 << 10

type HistoryHandler struct {
	historyUC usecase.HistoryUC
	logger    logger.Logger
}

func NewHistoryHandler(historyUC usecase.HistoryUC, logger logger.Logger) *HistoryHandler {
	return &HistoryHandler{historyUC: historyUC, logger: logger}
}

// addHistory
//
//	@Summary		Запись просмотра
//	@Description	Добавляет вещь в историю пользователя; хранятся 20 последних просмотров без повторов
//	@Tags			history
//	@Accept			json
//	@Produce		json
//	@Param			request	body		AddHistoryRequest	true	"Пользователь и вещь"
//	@Success		201		{object}	MessageResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		404		{object}	ErrorResponse	"Вещь не найдена"
//	@Router			/add-history [post]
func (h *HistoryHandler) addHistory(w http.ResponseWriter, r *http.Request) {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeFailure(h.logger, w, r, e.ErrExpectedJSON)
		return
	}

	var req AddHistoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHistoryBody)).Decode(&req); err != nil {
		writeFailure(h.logger, w, r, e.Wrap(err.Error(), e.ErrExpectedJSON))
		return
	}

	if _, err := h.historyUC.RecordInteraction(r.Context(), &usecase.RecordInteractionReq{
		UserID: req.UserID,
		ItemID: req.ClothingID,
	}); err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, MessageResponse{Message: "History recorded successfully."})
}

// getHistory
//
//	@Summary		История просмотров
//	@Description	До 20 последних просмотренных вещей, новые первыми
//	@Tags			history
//	@Produce		json
//	@Param			user_id	query		int				true	"ID пользователя"
//	@Success		200		{object}	HistoryResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/get-history [get]
func (h *HistoryHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		writeFailure(h.logger, w, r, e.Wrap("user_id", e.ErrMissingFields))
		return
	}

	userID, err := parseID(raw)
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	res, err := h.historyUC.RecentHistory(r.Context(), &usecase.RecentHistoryReq{UserID: userID})
	if err != nil {
		writeFailure(h.logger, w, r, err)
		return
	}

	out := HistoryResponse{Message: "Success", History: toHistoryItems(res.Entries)}
	if len(out.History) == 0 {
		out.Message = "No items found"
	}

	WriteSuccess(w, http.StatusOK, out)
}
