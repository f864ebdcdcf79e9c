// Package report turns registration rows into the admin views: per-table
// groups, a plain-text roster and the inline menus of the chat bot.
package report

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Divider separates table paragraphs in the roster.
const Divider = "──────────"

// Comparator orders table ids: numeric ids ascending, then the rest by
// collation, then the empty "no table" id. A Comparator is not safe for
// concurrent use.
type Comparator struct {
	collator *collate.Collator
}

// NewComparator returns a Comparator using language-neutral collation.
func NewComparator() *Comparator {
	return &Comparator{collator: collate.New(language.Und)}
}

// Compare returns -1, 0 or +1.
func (c *Comparator) Compare(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}

	na, aNum := parseNumber(a)
	nb, bNum := parseNumber(b)
	switch {
	case aNum && bNum:
		if na < nb {
			return -1
		}
		if na > nb {
			return 1
		}
		return strings.Compare(a, b)
	case aNum:
		return -1
	case bNum:
		return 1
	}

	if r := c.collator.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// CompareTableIDs is a convenience for one-off comparisons.
func CompareTableIDs(a, b string) int {
	return NewComparator().Compare(a, b)
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// SortOfferings orders offerings in place by id.
func SortOfferings(offerings []model.Offering) {
	c := NewComparator()
	slices.SortStableFunc(offerings, func(a, b model.Offering) int {
		return c.Compare(a.ID, b.ID)
	})
}

type groupBuilder struct {
	group          model.TableGroup
	offeringMaster string
	offeringSystem string
	offeringSeats  *int
	metaMaster     string
	metaSystem     string
	metaSeats      *int
}

// Group buckets rows by effective table id. Header values prefer the joined
// offering; legacy rows fall back to their metadata, taking the lowest seat
// count seen as the most conservative estimate.
func Group(rows []model.RegistrationRow) []model.TableGroup {
	builders := make(map[string]*groupBuilder)
	var order []string

	for _, row := range rows {
		id := row.EffectiveTableID()
		b, ok := builders[id]
		if !ok {
			b = &groupBuilder{group: model.TableGroup{TableID: id}}
			builders[id] = b
			order = append(order, id)
		}

		if row.OfferingMaster != nil && strings.TrimSpace(*row.OfferingMaster) != "" {
			b.offeringMaster = strings.TrimSpace(*row.OfferingMaster)
		}
		if row.OfferingSystem != nil && strings.TrimSpace(*row.OfferingSystem) != "" {
			b.offeringSystem = strings.TrimSpace(*row.OfferingSystem)
		}
		if row.OfferingSeats != nil {
			b.offeringSeats = row.OfferingSeats
		}

		if m := row.Meta.MasterName.String(); m != "" {
			b.metaMaster = m
		}
		if s := row.Meta.System.String(); s != "" {
			b.metaSystem = s
		}
		if s := row.Meta.RemainingSeats; s != nil && (b.metaSeats == nil || *s < *b.metaSeats) {
			b.metaSeats = s
		}

		b.group.Players = append(b.group.Players, model.Player{
			ID:      row.ID,
			Name:    row.DisplayName(),
			Contact: row.ContactInfo(),
		})
	}

	groups := make([]model.TableGroup, 0, len(order))
	for _, id := range order {
		b := builders[id]
		g := b.group
		g.MasterName = firstNonEmpty(b.offeringMaster, b.metaMaster)
		g.System = firstNonEmpty(b.offeringSystem, b.metaSystem)
		g.RemainingSeats = b.offeringSeats
		if g.RemainingSeats == nil {
			g.RemainingSeats = b.metaSeats
		}
		groups = append(groups, g)
	}

	c := NewComparator()
	slices.SortStableFunc(groups, func(a, b model.TableGroup) int {
		return c.Compare(a.TableID, b.TableID)
	})
	return groups
}

// Find returns the group with the given table id ("" for no table).
func Find(groups []model.TableGroup, tableID string) (model.TableGroup, bool) {
	for _, g := range groups {
		if g.TableID == tableID {
			return g, true
		}
	}
	return model.TableGroup{}, false
}

// Report renders one paragraph per group, separated by Divider. It returns
// "" when there are no groups.
func Report(groups []model.TableGroup) string {
	sections := make([]string, 0, len(groups))
	for _, g := range groups {
		if len(g.Players) == 0 {
			continue
		}
		var sb strings.Builder
		sb.WriteString(header(g))
		sb.WriteString("\n")
		for _, p := range g.Players {
			sb.WriteString("\n")
			sb.WriteString(PlayerLine(p))
		}
		sections = append(sections, sb.String())
	}
	return strings.Join(sections, "\n\n"+Divider+"\n\n")
}

func header(g model.TableGroup) string {
	seats := "-"
	if g.RemainingSeats != nil {
		seats = strconv.Itoa(*g.RemainingSeats)
	}
	title := "Table " + g.TableID
	if g.TableID == "" {
		title = fmt.Sprintf("No table (%d)", len(g.Players))
	}
	return fmt.Sprintf("%s: master %s, system %s, free seats: %s.",
		title, orDash(g.MasterName), orDash(g.System), seats)
}

// PlayerLine renders one registrant as a list item.
func PlayerLine(p model.Player) string {
	if p.Contact != "" {
		return fmt.Sprintf("- %s, %s", p.Name, p.Contact)
	}
	return "- " + p.Name
}

// Label names a group for buttons and notices.
func Label(tableID string) string {
	if tableID == "" {
		return "no table"
	}
	return "table " + tableID
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
