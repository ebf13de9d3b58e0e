// internal/tutor/handler.go
package tutor

import (
	"net/http"

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
	return &Handler{service: service, log: log.With("handler", "tutor")}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tutor/advice", h.Advice).Methods("POST", "OPTIONS")
}

type adviceRequest struct {
	TimeRange string `json:"time_range" validate:"omitempty,oneof=day week month"`
}

// Advice accepts an empty body, which means the last week.
func (h *Handler) Advice(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req adviceRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.WriteError(w, h.log, err)
			return
		}
	}
	advice, err := h.service.Advice(r.Context(), userID, req.TimeRange)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, advice)
}
