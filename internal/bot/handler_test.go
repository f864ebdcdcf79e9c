package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/database"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type sent struct {
	chatID  int64
	text    string
	buttons []model.MenuButton
	menu    bool
}

type fakeMessenger struct {
	sent     []sent
	answered []string
	err      error
}

func (f *fakeMessenger) SendText(chatID int64, text string) error {
	f.sent = append(f.sent, sent{chatID: chatID, text: text})
	return f.err
}

func (f *fakeMessenger) SendMenu(chatID int64, text string, buttons []model.MenuButton) error {
	f.sent = append(f.sent, sent{chatID: chatID, text: text, buttons: buttons, menu: true})
	return f.err
}

func (f *fakeMessenger) AnswerCallback(id string) error {
	f.answered = append(f.answered, id)
	return f.err
}

func (f *fakeMessenger) texts() []string {
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.text)
	}
	return out
}

func intPtr(n int) *int { return &n }

type fixture struct {
	db      *bun.DB
	regs    *service.RegistrationService
	out     *fakeMessenger
	handler *Handler
}

func setup(t *testing.T, allowed ...int64) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))

	store := sqlite.NewStore(db)
	out := &fakeMessenger{}
	return &fixture{
		db:      db,
		regs:    service.NewRegistrationService(store, nil, false),
		out:     out,
		handler: NewHandler(service.NewAdminService(store), out, allowed),
	}
}

func (f *fixture) register(t *testing.T, req model.RegisterRequest) *model.Registration {
	t.Helper()
	reg, err := f.regs.Register(context.Background(), req)
	require.NoError(t, err)
	return reg
}

func command(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}}
}

func click(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func TestPlayers_EmptyList(t *testing.T) {
	f := setup(t)
	f.handler.HandleUpdate(context.Background(), command(1, "/players"))

	require.Len(t, f.out.sent, 1)
	assert.Equal(t, "The list is empty.", f.out.sent[0].text)
}

func TestPlayers_ReportAndMenu(t *testing.T) {
	f := setup(t)
	f.register(t, model.RegisterRequest{Name: "Bob", TelegramID: "1", TableID: "1", MasterName: "A", System: "S", RemainingSeats: intPtr(2)})
	f.register(t, model.RegisterRequest{Name: "Ann", TelegramID: "2", TableID: "1", MasterName: "A", System: "S", RemainingSeats: intPtr(2)})
	_, err := f.db.ExecContext(context.Background(),
		`INSERT INTO users (telegram_id, username, meta) VALUES ('legacy', 'Old', '{"name":"Old","tableId":"5"}')`)
	require.NoError(t, err)

	f.handler.HandleUpdate(context.Background(), command(1, "/players@MantikonBot"))

	require.Len(t, f.out.sent, 2)
	assert.Equal(t, 1, strings.Count(f.out.sent[0].text, "Table 1:"))
	assert.Contains(t, f.out.sent[0].text, "- Bob\n- Ann")

	menu := f.out.sent[1]
	require.True(t, menu.menu)
	assert.Equal(t, []model.MenuButton{
		{Text: "Remove from table 1", Action: "delete-group:1"},
		{Text: "Remove from table 5", Action: "delete-group:5"},
		{Text: "Delete unlinked records (1)", Action: "cleanup-orphans"},
	}, menu.buttons)
}

func TestPlayers_LongReportIsSplit(t *testing.T) {
	f := setup(t)
	for i := 0; i < 120; i++ {
		f.register(t, model.RegisterRequest{
			Name:       strings.Repeat("N", 40),
			Contact:    model.FlexString(strings.Repeat("c", 20)),
			TelegramID: model.FlexString("id-" + string(rune('a'+i%26)) + strings.Repeat("x", i)),
			TableID:    model.FlexString(string(rune('1' + i%5))),
		})
	}

	f.handler.HandleUpdate(context.Background(), command(1, "/players"))

	require.Greater(t, len(f.out.sent), 2)
	for _, s := range f.out.sent {
		assert.LessOrEqual(t, len([]rune(s.text)), MaxMessageLen)
	}
	assert.True(t, f.out.sent[len(f.out.sent)-1].menu)
}

func TestIgnoredUpdates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, command(1, "hello"))
	f.handler.HandleUpdate(ctx, command(1, ""))
	f.handler.HandleUpdate(ctx, tgbotapi.Update{})
	f.handler.HandleUpdate(ctx, click(1, "unknown-token"))

	assert.Empty(t, f.out.sent)
	assert.Equal(t, []string{"cb-1"}, f.out.answered)
}

func TestDeleteGroup(t *testing.T) {
	f := setup(t)
	bob := f.register(t, model.RegisterRequest{Name: "Bob", Contact: "@bob", TelegramID: "1", TableID: "3"})
	zed := f.register(t, model.RegisterRequest{Name: "Zed", TelegramID: "2"})
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, click(1, "delete-group:3"))
	require.Len(t, f.out.sent, 1)
	assert.Equal(t, "Who should be removed from table 3?", f.out.sent[0].text)
	assert.Equal(t, []model.MenuButton{{Text: "Bob, @bob", Action: "delete-user:" + itoa(bob.ID)}}, f.out.sent[0].buttons)

	f.handler.HandleUpdate(ctx, click(1, "delete-group:none"))
	require.Len(t, f.out.sent, 2)
	assert.Equal(t, []model.MenuButton{{Text: "Zed", Action: "delete-user:" + itoa(zed.ID)}}, f.out.sent[1].buttons)

	f.handler.HandleUpdate(ctx, click(1, "delete-group:42"))
	require.Len(t, f.out.sent, 3)
	assert.Equal(t, "No records for table 42.", f.out.sent[2].text)
	assert.False(t, f.out.sent[2].menu)
}

func TestDeleteUser(t *testing.T) {
	f := setup(t)
	bob := f.register(t, model.RegisterRequest{Name: "Bob", TelegramID: "1", TableID: "3"})
	f.register(t, model.RegisterRequest{Name: "Ann", TelegramID: "2", TableID: "4"})
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, click(1, "delete-user:"+itoa(bob.ID)))
	texts := f.out.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, "Deleted Bob (table 3).", texts[0])
	assert.NotContains(t, texts[1], "Bob")
	assert.Contains(t, texts[1], "Ann")

	f.out.sent = nil
	f.handler.HandleUpdate(ctx, click(1, "delete-user:"+itoa(bob.ID)))
	assert.Equal(t, []string{"This record has already been deleted."}, f.out.texts())

	for _, id := range []string{"0", "-3"} {
		f.out.sent = nil
		f.handler.HandleUpdate(ctx, click(1, "delete-user:"+id))
		assert.Equal(t, []string{"This record has already been deleted."}, f.out.texts(), id)
	}

	f.out.sent = nil
	f.handler.HandleUpdate(ctx, click(1, "delete-user:abc"))
	assert.Equal(t, []string{"Invalid record id format."}, f.out.texts())
}

func TestCleanupOrphans(t *testing.T) {
	f := setup(t)
	f.register(t, model.RegisterRequest{Name: "Bob", TelegramID: "1", TableID: "3"})
	_, err := f.db.ExecContext(context.Background(),
		`INSERT INTO users (telegram_id, username, meta) VALUES
		 ('legacy-1', 'Old', '{"name":"Old","tableId":"5"}'),
		 ('legacy-2', 'Older', '{"name":"Older","tableId":"6"}')`)
	require.NoError(t, err)

	f.handler.HandleUpdate(context.Background(), click(1, "cleanup-orphans"))

	texts := f.out.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, "Deleted unlinked records: 2.", texts[0])
	assert.Contains(t, texts[1], "- Bob")
	assert.NotContains(t, texts[1], "Old")
	assert.Equal(t, []model.MenuButton{{Text: "Remove from table 3", Action: "delete-group:3"}}, f.out.sent[2].buttons)
}

func TestAllowlist(t *testing.T) {
	f := setup(t, 10)
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, command(99, "/players"))
	f.handler.HandleUpdate(ctx, click(99, "cleanup-orphans"))
	assert.Empty(t, f.out.sent)
	assert.Equal(t, []string{"cb-1"}, f.out.answered)

	f.handler.HandleUpdate(ctx, command(10, "/players"))
	assert.Equal(t, []string{"The list is empty."}, f.out.texts())
}

func TestMessengerFailuresAreSwallowed(t *testing.T) {
	f := setup(t)
	f.out.err = errors.New("telegram down")
	f.register(t, model.RegisterRequest{Name: "Bob", TelegramID: "1", TableID: "3"})

	assert.NotPanics(t, func() {
		f.handler.HandleUpdate(context.Background(), command(1, "/players"))
		f.handler.HandleUpdate(context.Background(), click(1, "delete-group:3"))
	})
	assert.Len(t, f.out.sent, 3)
}

func TestIsPlayersCommand(t *testing.T) {
	assert.True(t, isPlayersCommand("/players"))
	assert.True(t, isPlayersCommand("  /players@mantikon_bot extra"))
	assert.False(t, isPlayersCommand("/playersx"))
	assert.False(t, isPlayersCommand("players"))
}
