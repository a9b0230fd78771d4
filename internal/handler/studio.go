package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/middleware"
	"github.com/mmeshcher/syncflo-billing/internal/model"
	"github.com/mmeshcher/syncflo-billing/internal/service"
)

type analyzeRequest struct {
	URL     string `json:"url"`
	Goal    string `json:"goal"`
	Context string `json:"context"`
}

type campaignResponse struct {
	ID        string               `json:"id"`
	URL       string               `json:"url"`
	Goal      string               `json:"goal,omitempty"`
	Status    string               `json:"status"`
	Analysis  *model.BrandAnalysis `json:"analysis,omitempty"`
	CreatedAt string               `json:"createdAt"`
}

func toCampaignResponse(c model.Campaign) campaignResponse {
	return campaignResponse{
		ID:        c.ID,
		URL:       c.URL,
		Goal:      c.Goal,
		Status:    string(c.Status),
		Analysis:  c.Analysis,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

// Analyze анализирует бренд по URL и создаёт кампанию.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req analyzeRequest
	if !decodeJSON(r, &req) || req.URL == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.AnalyzeBrand(r.Context(), userID, req.URL, req.Goal, req.Context)
	if err != nil {
		h.writeServiceError(w, "analyze brand", err)
		return
	}

	writeJSON(w, http.StatusOK, toCampaignResponse(*c))
}

type tonesRequest struct {
	Analysis *model.BrandAnalysis `json:"analysis"`
}

// Tones предлагает тональности кампании.
func (h *Handler) Tones(w http.ResponseWriter, r *http.Request) {
	var req tonesRequest
	if !decodeJSON(r, &req) || req.Analysis == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tones, err := h.service.GenerateTones(r.Context(), req.Analysis)
	if err != nil {
		h.writeServiceError(w, "generate tones", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"tones": tones})
}

type adsRequest struct {
	CampaignID string               `json:"campaignId"`
	Analysis   *model.BrandAnalysis `json:"analysis"`
	Tone       string               `json:"tone"`
	Platforms  []string             `json:"platforms"`
}

// Ads генерирует рекламные тексты и списывает кредиты после успешной генерации.
func (h *Handler) Ads(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req adsRequest
	if !decodeJSON(r, &req) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.GenerateAds(r.Context(), userID, service.AdsRequest{
		CampaignID: req.CampaignID,
		Analysis:   req.Analysis,
		Tone:       req.Tone,
		Platforms:  req.Platforms,
	})
	if err != nil {
		h.writeServiceError(w, "generate ads", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type refineRequest struct {
	Content string `json:"content"`
	Prompt  string `json:"prompt"`
}

// Refine дорабатывает рекламный текст по инструкции.
func (h *Handler) Refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if !decodeJSON(r, &req) || req.Content == "" || req.Prompt == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	text, err := h.service.RefineContent(r.Context(), req.Content, req.Prompt)
	if err != nil {
		h.writeServiceError(w, "refine content", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"content": text})
}

// Campaigns возвращает историю кампаний текущего пользователя.
func (h *Handler) Campaigns(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	campaigns, err := h.service.GetCampaigns(r.Context(), userID)
	if err != nil {
		h.logger.Error("get campaigns error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]campaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		resp = append(resp, toCampaignResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	TotalCampaigns  int64  `json:"totalCampaigns"`
	ActiveCampaigns int64  `json:"activeCampaigns"`
	TotalAssets     int64  `json:"totalAssets"`
	CreditsUsed     int64  `json:"creditsUsed"`
	CreditsTotal    int64  `json:"creditsTotal"`
	PlanTier        string `json:"planTier"`
}

// Stats возвращает сводку студии текущего пользователя.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	st, err := h.service.GetDashboardStats(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "get dashboard stats", err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalCampaigns:  st.TotalCampaigns,
		ActiveCampaigns: st.TotalCampaigns,
		TotalAssets:     st.TotalAssets,
		CreditsUsed:     st.CreditsUsed,
		CreditsTotal:    st.CreditsTotal,
		PlanTier:        st.PlanTier,
	})
}

type assetResponse struct {
	ID          int64  `json:"id"`
	CampaignID  string `json:"campaignId"`
	CampaignURL string `json:"campaignUrl"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Platform    string `json:"platform,omitempty"`
	Tone        string `json:"tone,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// Assets возвращает сохранённые материалы текущего пользователя.
func (h *Handler) Assets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	assets, err := h.service.GetAssets(r.Context(), userID)
	if err != nil {
		h.logger.Error("get assets error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		resp = append(resp, assetResponse{
			ID:          a.ID,
			CampaignID:  a.CampaignID,
			CampaignURL: a.CampaignURL,
			Type:        a.Type,
			Content:     a.Content,
			Platform:    a.Platform,
			Tone:        a.Tone,
			CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
