// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/repository"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// SecretHeader carries the webhook secret Telegram was registered with.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TableLister is satisfied by *service.TableService.
type TableLister interface {
	List(ctx context.Context) ([]model.Offering, error)
}

// Registrar is satisfied by *service.RegistrationService.
type Registrar interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.Registration, error)
}

// UpdateHandler is satisfied by *bot.Handler.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// APIHandler holds all HTTP handlers of the registration API.
type APIHandler struct {
	tables        TableLister
	registrations Registrar
	bot           UpdateHandler
	pingMessage   string
	webhookSecret string
}

// NewAPIHandler constructs an APIHandler. bot may be nil, in which case
// webhook updates are acknowledged and dropped.
func NewAPIHandler(tables TableLister, registrations Registrar, bot UpdateHandler, pingMessage, webhookSecret string) *APIHandler {
	return &APIHandler{
		tables:        tables,
		registrations: registrations,
		bot:           bot,
		pingMessage:   pingMessage,
		webhookSecret: webhookSecret,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	return json.NewDecoder(r.Body).Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Ping handles GET /api/ping
func (h *APIHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": h.pingMessage})
}

// ListTables handles GET /api/tables
// Returns every game table, numeric ids first.
func (h *APIHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.List(r.Context())
	if err != nil {
		log.WithError(err).Error("list tables")
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
			Error:   "Failed to fetch tables",
			Details: err.Error(),
		})
		return
	}

	if tables == nil {
		tables = []model.Offering{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// Register handles POST /api/register
// Books a seat and returns the stored registration.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.registrations.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingIdentity), errors.Is(err, service.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNoSeatsLeft):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.WithError(err).Error("register")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": reg})
}

// TelegramWebhook handles POST /api/tg-webhook
// Telegram redelivers on anything but a fast 200, so every outcome is
// acknowledged.
func (h *APIHandler) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	defer writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	if h.webhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.webhookSecret)) != 1 {
		log.WithField("remote", r.RemoteAddr).Warn("telegram webhook with a bad secret")
		return
	}

	var upd tgbotapi.Update
	if err := decodeJSON(w, r, &upd); err != nil {
		log.WithError(err).Warn("undecodable telegram update")
		return
	}
	if h.bot == nil {
		return
	}
	h.bot.HandleUpdate(context.WithoutCancel(r.Context()), upd)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
