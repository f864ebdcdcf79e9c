package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/report"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/repository"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// MaxMessageLen is Telegram's limit for one text message.
const MaxMessageLen = 4096

const playersCommand = "/players"

// Admin is the reporting and cleanup backend, *service.AdminService.
type Admin interface {
	Overview(ctx context.Context) (*service.Overview, error)
	Group(ctx context.Context, tableID string) (model.TableGroup, bool, error)
	DeleteRegistration(ctx context.Context, id int64) (*model.Registration, error)
	CleanupOrphans(ctx context.Context) (int64, error)
}

// Handler turns chat updates into admin actions. It never fails: outbound
// errors are logged and dropped.
type Handler struct {
	admin   Admin
	out     Messenger
	allowed map[int64]struct{}
}

// NewHandler builds a Handler. When allowedChats is empty every chat may
// use the admin commands.
func NewHandler(admin Admin, out Messenger, allowedChats []int64) *Handler {
	h := &Handler{admin: admin, out: out}
	if len(allowedChats) > 0 {
		h.allowed = make(map[int64]struct{}, len(allowedChats))
		for _, id := range allowedChats {
			h.allowed[id] = struct{}{}
		}
	}
	return h
}

// HandleUpdate processes one update.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	default:
		metrics.BotUpdates.WithLabelValues("ignored").Inc()
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || !isPlayersCommand(msg.Text) {
		metrics.BotUpdates.WithLabelValues("ignored").Inc()
		return
	}
	if !h.permitted(msg.Chat.ID) {
		return
	}
	metrics.BotUpdates.WithLabelValues("players").Inc()
	h.sendPlayers(ctx, msg.Chat.ID)
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if err := h.out.AnswerCallback(cq.ID); err != nil {
		log.WithError(err).Warn("answer callback failed")
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		metrics.BotUpdates.WithLabelValues("ignored").Inc()
		return
	}
	chatID := cq.Message.Chat.ID
	if !h.permitted(chatID) {
		return
	}

	action := report.ParseAction(cq.Data)
	switch action.Kind {
	case report.ActionDeleteGroup:
		metrics.BotUpdates.WithLabelValues("delete_group").Inc()
		h.showGroup(ctx, chatID, action.TableID)
	case report.ActionDeleteUser:
		metrics.BotUpdates.WithLabelValues("delete_user").Inc()
		h.deleteUser(ctx, chatID, action.RawID)
	case report.ActionCleanupOrphans:
		metrics.BotUpdates.WithLabelValues("cleanup_orphans").Inc()
		h.cleanupOrphans(ctx, chatID)
	default:
		metrics.BotUpdates.WithLabelValues("ignored").Inc()
	}
}

func (h *Handler) permitted(chatID int64) bool {
	if h.allowed == nil {
		return true
	}
	if _, ok := h.allowed[chatID]; ok {
		return true
	}
	metrics.BotUpdates.WithLabelValues("forbidden").Inc()
	log.WithField("chat_id", chatID).Warn("admin command from a chat that is not allowed")
	return false
}

func (h *Handler) sendPlayers(ctx context.Context, chatID int64) {
	ov, err := h.admin.Overview(ctx)
	if err != nil {
		log.WithError(err).Error("build players report")
		h.sendText(chatID, "Could not load the registrations.")
		return
	}
	if len(ov.Groups) == 0 {
		h.sendText(chatID, "The list is empty.")
		return
	}
	for _, chunk := range report.Split(ov.Report, MaxMessageLen) {
		h.sendText(chatID, chunk)
	}
	h.sendMenu(chatID, "Pick a table to edit:", report.GroupMenu(ov.Groups, ov.Orphans))
}

func (h *Handler) showGroup(ctx context.Context, chatID int64, tableID string) {
	g, ok, err := h.admin.Group(ctx, tableID)
	if err != nil {
		log.WithError(err).WithField("table_id", tableID).Error("load table group")
		h.sendText(chatID, "Could not load the registrations.")
		return
	}
	if !ok {
		h.sendText(chatID, fmt.Sprintf("No records for %s.", report.Label(tableID)))
		return
	}
	h.sendMenu(chatID, fmt.Sprintf("Who should be removed from %s?", report.Label(tableID)), report.PlayerMenu(g))
}

func (h *Handler) deleteUser(ctx context.Context, chatID int64, rawID string) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		h.sendText(chatID, "Invalid record id format.")
		return
	}

	reg, err := h.admin.DeleteRegistration(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.sendText(chatID, "This record has already been deleted.")
		return
	case err != nil:
		log.WithError(err).WithField("registration_id", id).Error("delete registration")
		h.sendText(chatID, "Could not delete the record.")
		return
	}

	h.sendText(chatID, fmt.Sprintf("Deleted %s (%s).", reg.DisplayName(), report.Label(reg.EffectiveTableID())))
	h.sendPlayers(ctx, chatID)
}

func (h *Handler) cleanupOrphans(ctx context.Context, chatID int64) {
	n, err := h.admin.CleanupOrphans(ctx)
	if err != nil {
		log.WithError(err).Error("cleanup orphaned registrations")
		h.sendText(chatID, "Could not delete the unlinked records.")
		return
	}
	h.sendText(chatID, fmt.Sprintf("Deleted unlinked records: %d.", n))
	h.sendPlayers(ctx, chatID)
}

func (h *Handler) sendText(chatID int64, text string) {
	if err := h.out.SendText(chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("telegram send failed")
	}
}

func (h *Handler) sendMenu(chatID int64, text string, buttons []model.MenuButton) {
	if err := h.out.SendMenu(chatID, text, buttons); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("telegram send failed")
	}
}

// isPlayersCommand accepts "/players" and "/players@SomeBot".
func isPlayersCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.EqualFold(cmd, playersCommand)
}
