package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keygate/keygate/internal/apikeys"
	"github.com/keygate/keygate/internal/audit"
	"github.com/keygate/keygate/internal/auth"
)

// EventLister reads the lifecycle trail of a key.
type EventLister interface {
	ListForKey(ctx context.Context, keyID, ownerID uuid.UUID) ([]audit.Event, error)
}

type KeysHandler struct {
	svc    *apikeys.Service
	events EventLister
}

func NewKeysHandler(svc *apikeys.Service, events EventLister) *KeysHandler {
	return &KeysHandler{svc: svc, events: events}
}

type createKeyRequest struct {
	Name         string `json:"name"`
	KeyType      string `json:"keyType"`
	MonthlyLimit *int64 `json:"monthlyLimit"`
}

func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Sign in to manage API keys.")
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Request body must be valid JSON.")
		return
	}

	key, err := h.svc.Create(r.Context(), user.ID, apikeys.CreateRequest{
		Name:         req.Name,
		KeyType:      req.KeyType,
		MonthlyLimit: req.MonthlyLimit,
	})
	if err != nil {
		writeKeyError(w, err)
		return
	}

	// The plaintext secret is part of this response and shown only once.
	writeJSON(w, http.StatusCreated, map[string]interface{}{"data": key})
}

func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Sign in to manage API keys.")
		return
	}

	keys, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		writeKeyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": keys})
}

func (h *KeysHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Sign in to manage API keys.")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found", "API key not found.")
		return
	}

	key, err := h.svc.Get(r.Context(), id, user.ID)
	if err != nil {
		writeKeyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": key})
}

type updateKeyRequest struct {
	Name         *string       `json:"name"`
	KeyType      *string       `json:"keyType"`
	MonthlyLimit optionalInt64 `json:"monthlyLimit"`
	IsActive     *bool         `json:"isActive"`
	Rotate       bool          `json:"rotate"`
}

// optionalInt64 distinguishes an absent monthlyLimit from an explicit null
// (null clears the limit, making the key unlimited).
type optionalInt64 struct {
	Set   bool
	Value *int64
}

func (o *optionalInt64) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

func (h *KeysHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Sign in to manage API keys.")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found", "API key not found.")
		return
	}

	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Request body must be valid JSON.")
		return
	}

	key, err := h.svc.Update(r.Context(), id, user.ID, apikeys.UpdateRequest{
		Name:         req.Name,
		KeyType:      req.KeyType,
		MonthlyLimit: req.MonthlyLimit.Value,
		LimitSet:     req.MonthlyLimit.Set,
		IsActive:     req.IsActive,
		Rotate:       req.Rotate,
	})
	if err != nil {
		writeKeyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": key})
}

func (h *KeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Sign in to manage API keys.")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found", "API key not found.")
		return
	}

	if err := h.svc.Delete(r.Context(), id, user.ID); err != nil {
		writeKeyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "API key deleted successfully"})
}

func (h *KeysHandler) Events(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Sign in to manage API keys.")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found", "API key not found.")
		return
	}

	events, err := h.events.ListForKey(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", "Unable to load key events.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": events})
}

func writeKeyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apikeys.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid input", err.Error())
	case errors.Is(err, apikeys.ErrNoOp):
		writeError(w, http.StatusBadRequest, "No valid fields to update", "Provide at least one of name, keyType, monthlyLimit, isActive, or rotate.")
	case errors.Is(err, apikeys.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", "API key not found.")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", "Something went wrong. Please try again later.")
	}
}
