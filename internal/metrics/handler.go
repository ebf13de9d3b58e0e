// internal/metrics/handler.go
package metrics

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"quiz-practice/internal/auth"
	"quiz-practice/internal/httpx"
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
	return &Handler{service: service, log: log.With("handler", "metrics")}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/metrics/me", h.Overview).Methods("GET")
	r.HandleFunc("/metrics/me/topics", h.Topics).Methods("GET")
	r.HandleFunc("/metrics/me/game-modes", h.GameModes).Methods("GET")
	r.HandleFunc("/metrics/me/timeline", h.Timeline).Methods("GET")
}

func intQuery(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	ov, err := h.service.Overview(r.Context(), userID, intQuery(r, "limit"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ov)
}

func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	rows, err := h.service.Topics(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"topics": rows})
}

func (h *Handler) GameModes(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	rows, err := h.service.GameModes(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"game_modes": rows})
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	days, err := h.service.Timeline(r.Context(), userID, intQuery(r, "days"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"timeline": days})
}
