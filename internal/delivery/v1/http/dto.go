package http

import (
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
)

const historyTimeLayout = "2006-01-02 15:04:05"

type ItemLink struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type CategorizedItem struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	URL      string `json:"url"`
}

type SearchItem struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	URL      string   `json:"url"`
	Score    *float64 `json:"score,omitempty"`
}

type SimilarResponse struct {
	Recommendations []ItemLink `json:"recommendations"`
}

type PopularResponse struct {
	RecommendedPopular []CategorizedItem `json:"recommended_popular"`
}

type PersonalizedResponse struct {
	Message                     string            `json:"message,omitempty"`
	PersonalizedRecommendations []CategorizedItem `json:"personalized_recommendations"`
}

type SearchResponse struct {
	Message string       `json:"message,omitempty"`
	Items   []SearchItem `json:"items"`
}

type AddHistoryRequest struct {
	UserID     int64 `json:"user_id"`
	ClothingID int64 `json:"clothing_id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HistoryItem struct {
	ID        int64  `json:"id"`
	Image     string `json:"image"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
}

type HistoryResponse struct {
	Message string        `json:"message"`
	History []HistoryItem `json:"history"`
}

type ModeHealth struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type HealthResponse struct {
	Status          string                `json:"status"`
	ArtifactVersion string                `json:"artifact_version,omitempty"`
	ModelVersion    string                `json:"model_version,omitempty"`
	Modes           map[string]ModeHealth `json:"modes"`
}

func toItemLinks(items []usecase.RecommendedItem) []ItemLink {
	res := make([]ItemLink, len(items))
	for i, it := range items {
		res[i] = ItemLink{ID: it.ID, URL: it.URL}
	}

	return res
}

func toCategorizedItems(items []usecase.RecommendedItem) []CategorizedItem {
	res := make([]CategorizedItem, len(items))
	for i, it := range items {
		res[i] = CategorizedItem{ID: it.ID, Category: it.Category, URL: it.URL}
	}

	return res
}

func toSearchItems(items []usecase.RecommendedItem) []SearchItem {
	res := make([]SearchItem, len(items))
	for i, it := range items {
		res[i] = SearchItem{ID: it.ID, Title: it.Title, Category: it.Category, URL: it.URL}
		if it.Score != nil {
			s := roundScore(*it.Score)
			res[i].Score = &s
		}
	}

	return res
}

func toHistoryItems(entries []usecase.HistoryEntry) []HistoryItem {
	res := make([]HistoryItem, len(entries))
	for i, en := range entries {
		res[i] = HistoryItem{
			ID:        en.ItemID,
			Image:     en.URL,
			Title:     en.Title,
			Category:  en.Category,
			CreatedAt: en.CreatedAt.In(time.UTC).Format(historyTimeLayout),
		}
	}

	return res
}

func toHealthResponse(h *usecase.HealthRes) *HealthResponse {
	res := &HealthResponse{
		Status:          "ok",
		ArtifactVersion: h.ArtifactVersion,
		ModelVersion:    h.ModelVersion,
		Modes:           make(map[string]ModeHealth, len(h.Modes)),
	}
	for mode, st := range h.Modes {
		res.Modes[mode] = ModeHealth{Available: st.Available, Reason: st.Reason}
		if !st.Available {
			res.Status = "degraded"
		}
	}

	return res
}
