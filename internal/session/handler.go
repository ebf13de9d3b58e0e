// internal/session/handler.go
package session

import (
	"net/http"

	"github.com/gorilla/mux"

	"quiz-practice/internal/auth"
	"quiz-practice/internal/httpx"
	"quiz-practice/internal/models"
	"quiz-practice/pkg/logger"
)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: service, log: log.With("handler", "session")}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sessions", h.Start).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{sessionID}/continue", h.Continue).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{sessionID}/results", h.SaveResults).Methods("POST", "OPTIONS")
}

type startRequest struct {
	Topic    string `json:"topic" validate:"required,max=120"`
	GameMode string `json:"game_mode" validate:"required,oneof=timed survival normal"`
}

type continueRequest struct {
	Topic       string `json:"topic" validate:"max=120"`
	UsedItemIDs []uint `json:"used_item_ids" validate:"max=500"`
}

type saveRequest struct {
	CorrectItemIDs   []uint `json:"correct_item_ids" validate:"max=500"`
	IncorrectItemIDs []uint `json:"incorrect_item_ids" validate:"max=500"`
	GameMode         string `json:"game_mode" validate:"omitempty,oneof=timed survival normal"`
	TimeUsed         int    `json:"time_used" validate:"min=0"`
	Topic            string `json:"topic" validate:"max=120"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req startRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	res, err := h.service.Start(r.Context(), userID, req.Topic, req.GameMode)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) Continue(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req continueRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	items, err := h.service.ContinueSurvival(r.Context(), mux.Vars(r)["sessionID"], userID, req.Topic, req.UsedItemIDs)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string][]models.ItemDTO{"items": items})
}

func (h *Handler) SaveResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req saveRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	res, err := h.service.SaveResults(r.Context(), SaveRequest{
		SessionID:        mux.Vars(r)["sessionID"],
		UserID:           userID,
		CorrectItemIDs:   req.CorrectItemIDs,
		IncorrectItemIDs: req.IncorrectItemIDs,
		GameMode:         req.GameMode,
		TimeUsed:         req.TimeUsed,
		Topic:            req.Topic,
	})
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
