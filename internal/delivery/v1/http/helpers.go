package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// scorePlaces — знаков после запятой в score ответа.
const scorePlaces = 4

// ErrorResponse — тело ответа с ошибкой. Error — машиночитаемый код, Message — текст для человека.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, errCode string, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Error:   errCode,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет ошибку статусу, коду и сообщению.
// Таймаут модели проверяется раньше недоступности поиска: он приходит обёрнутым в неё.
func ToHTTPResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, e.ErrItemNotFound):
		return http.StatusNotFound, "item_not_found", e.ErrItemNotFound.Error()
	case errors.Is(err, e.ErrNoHistory):
		return http.StatusNotFound, "no_history", e.ErrNoHistory.Error()
	case errors.Is(err, e.ErrEmptyQuery):
		return http.StatusBadRequest, "empty_query", e.ErrEmptyQuery.Error()
	case errors.Is(err, e.ErrInvalidTopN):
		return http.StatusBadRequest, "invalid_top_n", e.ErrInvalidTopN.Error()
	case errors.Is(err, e.ErrInvalidID):
		return http.StatusBadRequest, "invalid_id", e.ErrInvalidID.Error()
	case errors.Is(err, e.ErrMissingFields):
		return http.StatusBadRequest, "missing_fields", e.ErrMissingFields.Error()
	case errors.Is(err, e.ErrExpectedJSON):
		return http.StatusBadRequest, "expected_json", e.ErrExpectedJSON.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, "bad_request", e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrModelTimeout):
		return http.StatusGatewayTimeout, "model_timeout", e.ErrModelTimeout.Error()
	case errors.Is(err, e.ErrSearchUnavailable):
		return http.StatusServiceUnavailable, "search_unavailable", e.ErrSearchUnavailable.Error()
	case errors.Is(err, e.ErrSimilarUnavailable):
		return http.StatusServiceUnavailable, "similar_unavailable", e.ErrSimilarUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal", e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, errCode, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, errCode, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeFailure логирует ошибку по её классу и пишет ответ.
func writeFailure(log logger.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if status, _, _ := ToHTTPResponse(err); status >= http.StatusInternalServerError {
		log.Errorf(err, "%d %s %s", status, r.Method, r.URL.Path)
	} else {
		log.Warnf("%d %s %s: %v", status, r.Method, r.URL.Path, err)
	}

	WriteError(w, err)
}

// parseID разбирает целочисленный идентификатор из пути или query.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, e.Wrap(raw, e.ErrInvalidID)
	}

	return id, nil
}

// parseTopN читает query-параметр name; отсутствие — значение по умолчанию.
// Границы проверяет usecase.
func parseTopN(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, e.Wrap(name+"="+raw, e.ErrInvalidTopN)
	}

	return n, nil
}

// roundScore округляет score до scorePlaces знаков без артефактов float32 -> float64.
func roundScore(s float32) float64 {
	f, _ := decimal.NewFromFloat32(s).Round(scorePlaces).Float64()
	return f
}
