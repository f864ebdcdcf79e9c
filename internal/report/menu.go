package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
)

// Action kinds carried by inline button tokens.
const (
	ActionNone ActionKind = iota
	ActionDeleteGroup
	ActionDeleteUser
	ActionCleanupOrphans
)

// ActionKind identifies what a button click asks for.
type ActionKind int

const (
	deleteGroupPrefix = "delete-group:"
	deleteUserPrefix  = "delete-user:"
	cleanupOrphans    = "cleanup-orphans"

	// Tokens sent by the first version of the bot. Buttons already in
	// chats still carry them.
	legacyGroupPrefix = "del:table:"
	legacyUserPrefix  = "del:user:"
	legacyCleanup     = "cleanup:orphans"

	// NoTableToken stands for the empty table id inside tokens.
	NoTableToken = "none"
)

// Action is a parsed button token.
type Action struct {
	Kind    ActionKind
	TableID string
	// RawID is the unparsed registration id of a delete-user token.
	RawID string
}

// DeleteGroupToken builds the token that opens a group's deletion menu.
func DeleteGroupToken(tableID string) string {
	if tableID == "" {
		tableID = NoTableToken
	}
	return deleteGroupPrefix + tableID
}

// DeleteUserToken builds the token that deletes one registration.
func DeleteUserToken(id int64) string {
	return deleteUserPrefix + strconv.FormatInt(id, 10)
}

// CleanupOrphansToken is the token of the bulk orphan cleanup button.
func CleanupOrphansToken() string {
	return cleanupOrphans
}

// ParseAction decodes a button token. Unknown tokens yield ActionNone.
func ParseAction(data string) Action {
	data = strings.TrimSpace(data)
	switch {
	case strings.HasPrefix(data, deleteGroupPrefix):
		return groupAction(strings.TrimPrefix(data, deleteGroupPrefix))
	case strings.HasPrefix(data, legacyGroupPrefix):
		return groupAction(strings.TrimPrefix(data, legacyGroupPrefix))
	case strings.HasPrefix(data, deleteUserPrefix):
		return Action{Kind: ActionDeleteUser, RawID: strings.TrimPrefix(data, deleteUserPrefix)}
	case strings.HasPrefix(data, legacyUserPrefix):
		return Action{Kind: ActionDeleteUser, RawID: strings.TrimPrefix(data, legacyUserPrefix)}
	case data == cleanupOrphans, data == legacyCleanup:
		return Action{Kind: ActionCleanupOrphans}
	}
	return Action{Kind: ActionNone}
}

// ReservedTableID reports whether a group token for id would be read back
// as the no-table group.
func ReservedTableID(id string) bool {
	// "—" is how the first version labelled the no-table group.
	return id == NoTableToken || id == "—"
}

func groupAction(id string) Action {
	if ReservedTableID(id) {
		id = ""
	}
	return Action{Kind: ActionDeleteGroup, TableID: id}
}

// GroupMenu has one button per non-empty group, plus a cleanup button when
// orphaned registrations exist.
func GroupMenu(groups []model.TableGroup, orphans int) []model.MenuButton {
	var buttons []model.MenuButton
	for _, g := range groups {
		if len(g.Players) == 0 {
			continue
		}
		buttons = append(buttons, model.MenuButton{
			Text:   "Remove from " + Label(g.TableID),
			Action: DeleteGroupToken(g.TableID),
		})
	}
	if orphans > 0 {
		buttons = append(buttons, model.MenuButton{
			Text:   fmt.Sprintf("Delete unlinked records (%d)", orphans),
			Action: CleanupOrphansToken(),
		})
	}
	return buttons
}

// PlayerMenu has one deletion button per registrant of the group.
func PlayerMenu(g model.TableGroup) []model.MenuButton {
	buttons := make([]model.MenuButton, 0, len(g.Players))
	for _, p := range g.Players {
		buttons = append(buttons, model.MenuButton{
			Text:   strings.TrimPrefix(PlayerLine(p), "- "),
			Action: DeleteUserToken(p.ID),
		})
	}
	return buttons
}

// Split cuts text into chunks of at most limit runes, preferring paragraph
// breaks, then line breaks.
func Split(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	for len([]rune(text)) > limit {
		runes := []rune(text)
		window := string(runes[:limit])

		cut := strings.LastIndex(window, "\n\n")
		sep := 2
		if cut <= 0 {
			cut = strings.LastIndex(window, "\n")
			sep = 1
		}
		if cut <= 0 {
			cut = len(window)
			sep = 0
		}

		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut+sep:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
