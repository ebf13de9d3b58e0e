// internal/content/handler.go
package content

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gorilla/mux"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/auth"
	"quiz-practice/internal/httpx"
	"quiz-practice/pkg/logger"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: service, log: log.With("handler", "content")}
}

// RegisterRoutes mounts the item routes on an authenticated router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/items/generate", h.Generate).Methods("POST", "OPTIONS")
	r.HandleFunc("/items/from-notes", h.FromNotes).Methods("POST", "OPTIONS")
	r.HandleFunc("/items/pending", h.Pending).Methods("GET")
	r.HandleFunc("/items/{id:[0-9]+}/displayed", h.MarkDisplayed).Methods("POST", "OPTIONS")
	r.HandleFunc("/items/{id:[0-9]+}/answer", h.Answer).Methods("POST", "OPTIONS")
	r.HandleFunc("/topics", h.Topics).Methods("GET")
}

type generateRequest struct {
	Topic             string   `json:"topic" validate:"required,max=120"`
	Level             string   `json:"level" validate:"required,max=40"`
	PreviousQuestions []string `json:"previous_questions" validate:"max=50"`
	DeliveryTime      string   `json:"delivery_time"`
	Frequency         string   `json:"frequency" validate:"omitempty,oneof=daily weekly"`
}

type notesRequest struct {
	Notes        string `json:"notes" validate:"required,min=20,max=20000"`
	Topic        string `json:"topic" validate:"required,max=120"`
	Level        string `json:"level" validate:"required,max=40"`
	Schedule     bool   `json:"schedule"`
	DeliveryTime string `json:"delivery_time"`
	Frequency    string `json:"frequency" validate:"omitempty,oneof=daily weekly"`
}

type answerRequest struct {
	SelectedAnswer string `json:"selected_answer" validate:"required,len=1"`
	ResponseTime   int    `json:"response_time" validate:"min=0,max=86400"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req generateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	deliveryTime, err := normalizeClock(req.DeliveryTime)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	res, err := h.service.GenerateOne(r.Context(), GenerateRequest{
		UserID:            userID,
		Topic:             req.Topic,
		Level:             req.Level,
		PreviousQuestions: req.PreviousQuestions,
		DeliveryTime:      deliveryTime,
		Frequency:         req.Frequency,
	})
	if err != nil {
		h.writeGenerateError(w, res, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) FromNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req notesRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	deliveryTime, err := normalizeClock(req.DeliveryTime)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	res, err := h.service.GenerateFromNotes(r.Context(), NotesRequest{
		UserID:       userID,
		Notes:        req.Notes,
		Topic:        req.Topic,
		Level:        req.Level,
		Schedule:     req.Schedule,
		DeliveryTime: deliveryTime,
		Frequency:    req.Frequency,
	})
	if err != nil {
		h.writeGenerateError(w, res, err)
		return
	}
	status := http.StatusOK
	if res.Saved {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, res)
}

// writeGenerateError includes the validation report when the item was rejected.
func (h *Handler) writeGenerateError(w http.ResponseWriter, res *GenerateResult, err error) {
	if res != nil && apperr.KindOf(err) == apperr.KindValidation {
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      apperr.PublicMessage(err),
			"validation": res.Validation,
		})
		return
	}
	httpx.WriteError(w, h.log, err)
}

func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	topics, err := h.service.Topics(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"topics": topics})
}

func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	items, err := h.service.Pending(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) MarkDisplayed(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Validation("invalid item id"))
		return
	}
	if err := h.service.MarkDisplayed(r.Context(), userID, uint(id)); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Validation("invalid item id"))
		return
	}

	var req answerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	res, err := h.service.Answer(r.Context(), AnswerRequest{
		UserID:         userID,
		ItemID:         uint(id),
		SelectedAnswer: req.SelectedAnswer,
		ResponseTime:   req.ResponseTime,
	})
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// normalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func normalizeClock(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	if !clockPattern.MatchString(v) {
		return "", apperr.Validation("delivery_time must be HH:MM or HH:MM:SS")
	}
	if len(v) == 5 {
		v += ":00"
	}
	return v, nil
}
