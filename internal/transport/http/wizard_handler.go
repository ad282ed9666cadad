package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	gorillaws "github.com/gorilla/websocket"

	apierrors "sportsbet/internal/errors"
	"sportsbet/internal/websocket"
)

// WizardHandler handles the wizard REST and websocket endpoints. Every
// endpoint resolves the caller's session first; state lives in the
// session's controller, not in the handler.
type WizardHandler struct {
	sessions *SessionManager
	validate *validator.Validate
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewWizardHandler creates a wizard handler over the session manager.
func NewWizardHandler(sessions *SessionManager, readBuf, writeBuf int, logger *slog.Logger) *WizardHandler {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WizardHandler{
		sessions: sessions,
		validate: validator.New(),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			// Sessions are cookie-scoped; cross-origin reads gain nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With(slog.String("handler", "wizard")),
	}
}

// Routes returns the wizard router, mounted under /api/wizard.
func (h *WizardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/state", h.State)
	r.Get("/export", h.Export)
	r.Post("/sport", h.SelectSport)
	r.Post("/filter", h.ConfirmFilter)
	r.Post("/extraction", h.SetExtraction)
	r.Post("/advance", h.Advance)
	r.Post("/reset", h.Reset)
	return r
}

// SelectSportRequest is the body of POST /api/wizard/sport.
type SelectSportRequest struct {
	Sport string `json:"sport"`
}

// Bind implements render.Binder.
func (r *SelectSportRequest) Bind(*http.Request) error {
	if r.Sport == "" {
		return errors.New("sport is required")
	}
	return nil
}

// ConfirmFilterRequest is the body of POST /api/wizard/filter. An empty
// selection is decodable; the controller rejects it on advance.
type ConfirmFilterRequest struct {
	RowIDs []int `json:"row_ids"`
}

// Bind implements render.Binder.
func (r *ConfirmFilterRequest) Bind(*http.Request) error { return nil }

// ExtractionConfigRequest is the body of POST /api/wizard/extraction.
// Omitted fields keep the controller defaults.
type ExtractionConfigRequest struct {
	OddsType        *string  `json:"odds_type"`
	DropNaThreshold *float64 `json:"drop_na_threshold" validate:"omitempty,gte=0,lte=1"`
}

// Bind implements render.Binder.
func (r *ExtractionConfigRequest) Bind(*http.Request) error { return nil }

// StatusResponse acknowledges a state-changing request.
type StatusResponse struct {
	Success bool   `json:"success"`
	Step    string `json:"step"`
}

// State handles GET /api/wizard/state.
func (h *WizardHandler) State(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)
	render.JSON(w, r, sess.Controller.Snapshot())
}

// SelectSport handles POST /api/wizard/sport.
func (h *WizardHandler) SelectSport(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)

	req := &SelectSportRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := sess.Controller.SelectSport(req.Sport); err != nil {
		h.renderError(w, r, apierrors.FromWizard(err))
		return
	}
	h.ok(w, r, sess)
}

// ConfirmFilter handles POST /api/wizard/filter.
func (h *WizardHandler) ConfirmFilter(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)

	req := &ConfirmFilterRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := sess.Controller.ConfirmFilterSelection(req.RowIDs); err != nil {
		h.renderError(w, r, apierrors.FromWizard(err))
		return
	}
	h.ok(w, r, sess)
}

// SetExtraction handles POST /api/wizard/extraction.
func (h *WizardHandler) SetExtraction(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)

	req := &ExtractionConfigRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.renderError(w, r, apierrors.ErrValidation("drop_na_threshold", "must be within [0, 1]"))
		return
	}
	if err := sess.Controller.SetExtractionConfig(req.OddsType, req.DropNaThreshold); err != nil {
		h.renderError(w, r, apierrors.FromWizard(err))
		return
	}
	h.ok(w, r, sess)
}

// Advance handles POST /api/wizard/advance. A successful advance that
// requires a fetch returns before the fetch completes; progress arrives
// over the session's websocket.
func (h *WizardHandler) Advance(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)
	if err := sess.Controller.Advance(); err != nil {
		h.renderError(w, r, apierrors.FromWizard(err))
		return
	}
	h.ok(w, r, sess)
}

// Reset handles POST /api/wizard/reset.
func (h *WizardHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)
	if err := sess.Controller.Reset(); err != nil {
		h.renderError(w, r, apierrors.FromWizard(err))
		return
	}
	h.ok(w, r, sess)
}

// Export handles GET /api/wizard/export, returning the serialized
// loader configuration as a download.
func (h *WizardHandler) Export(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)
	payload, err := sess.Controller.Export()
	if err != nil {
		h.renderError(w, r, apierrors.FromWizard(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="dataloader.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// WebSocket handles GET /ws, upgrading the connection and attaching it
// to the session's hub.
func (h *WizardHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}
	websocket.ServeWS(sess.Hub, conn, h.logger)
}

func (h *WizardHandler) ok(w http.ResponseWriter, r *http.Request, sess *Session) {
	render.JSON(w, r, StatusResponse{Success: true, Step: sess.Controller.Snapshot().Cursor})
}

func (h *WizardHandler) renderError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error_code", apiErr.ErrorCode),
			slog.String("message", apiErr.Message))
	}
	render.Render(w, r, apierrors.NewErrorResponse(apiErr))
}
