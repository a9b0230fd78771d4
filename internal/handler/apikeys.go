package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/middleware"
	"github.com/mmeshcher/syncflo-billing/internal/model"
)

type apiKeyRequest struct {
	Name string `json:"name"`
}

type apiKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Hint      string `json:"keyHint"`
	CreatedAt string `json:"createdAt"`
}

type newAPIKeyResponse struct {
	Key    apiKeyResponse `json:"key"`
	RawKey string         `json:"rawKey"`
}

func toAPIKeyResponse(k model.APIKey) apiKeyResponse {
	return apiKeyResponse{
		ID:        k.ID,
		Name:      k.Name,
		Hint:      k.KeyHint,
		CreatedAt: k.CreatedAt.Format(time.RFC3339),
	}
}

// CreateAPIKey выпускает ключ доступа. Значение ключа возвращается только в этом ответе.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req apiKeyRequest
	if !decodeJSON(r, &req) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.GenerateAPIKey(r.Context(), userID, req.Name)
	if err != nil {
		h.writeServiceError(w, "generate api key", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, newAPIKeyResponse{
		Key:    toAPIKeyResponse(res.Key),
		RawKey: res.Raw,
	})
}

// ListAPIKeys возвращает ключи текущего пользователя без их значений.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	keys, err := h.service.ListAPIKeys(r.Context(), userID)
	if err != nil {
		h.logger.Error("list api keys error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		resp = append(resp, toAPIKeyResponse(k))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RevokeAPIKey удаляет ключ текущего пользователя.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.service.RevokeAPIKey(r.Context(), userID, chi.URLParam(r, "keyID")); err != nil {
		h.writeServiceError(w, "revoke api key", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
