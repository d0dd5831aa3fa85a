package commands

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/octanebot/octanebot/internal/forms"
	"github.com/octanebot/octanebot/internal/markup"
	"github.com/octanebot/octanebot/internal/octane"
)

// Empty is shown for fields without a value.
const Empty = "[empty]"

// Card is a rich rendering of one entity.
type Card struct {
	Title    string
	Color    string
	Fields   []CardField
	Markdown []string // titles of fields whose value is markup
	Fallback string
}

// CardField is one titled value of a card.
type CardField struct {
	Title string
	Value string
	Short bool
}

// FieldValue renders a raw entity field value: references show their name,
// multi-references their comma-joined names.
func FieldValue(v any) string {
	switch x := v.(type) {
	case nil:
		return Empty
	case string:
		if x == "" {
			return Empty
		}
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case octane.Entity:
		return FieldValue(map[string]any(x))
	case map[string]any:
		if name, ok := x["name"].(string); ok && name != "" {
			return name
		}
		if data, ok := x["data"].([]any); ok {
			var names []string
			for _, item := range data {
				if ref, ok := item.(map[string]any); ok {
					if name, ok := ref["name"].(string); ok {
						names = append(names, name)
					}
				}
			}
			if len(names) == 0 {
				return Empty
			}
			return strings.Join(names, ",")
		}
		if id := octane.Entity(x).ID(); id != "" {
			return id
		}
		return Empty
	default:
		return fmt.Sprint(x)
	}
}

// slackDate renders a date_time value with Slack's localized date syntax.
func slackDate(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return fmt.Sprintf("<!date^%d^{date_num} {time_secs}|%s>", t.Unix(), value)
}

func phaseName(e octane.Entity) string {
	if phase, ok := e.Ref("phase"); ok {
		return phase.Name()
	}
	return ""
}

// FallbackText is the plain text rendering of e under form.
func FallbackText(e octane.Entity, form *forms.Form) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s - %s - Phase:%s\n", e.ID(), e.Name(), phaseName(e))
	for _, f := range form.Fields() {
		value := FieldValue(e[f.Name])
		if f.Type == octane.FieldTypeMemo {
			value = markup.PlainText(value)
		}
		fmt.Fprintf(&b, "%s: %s\n", f.Title(), value)
	}
	return b.String()
}

// NewCard renders e under form as a card.
func NewCard(e octane.Entity, form *forms.Form) Card {
	card := Card{
		Title:    fmt.Sprintf("ID: %s | %s | Phase: %s", e.ID(), e.Name(), phaseName(e)),
		Color:    form.Color,
		Fallback: FallbackText(e, form),
	}
	for _, f := range form.Fields() {
		value := FieldValue(e[f.Name])
		switch f.Type {
		case octane.FieldTypeMemo:
			card.Markdown = append(card.Markdown, f.Title())
			value = markup.ToSlack(value)
		case octane.FieldTypeDateTime:
			card.Markdown = append(card.Markdown, f.Title())
			value = slackDate(value)
		}
		card.Fields = append(card.Fields, CardField{Title: f.Title(), Value: value, Short: f.Short()})
	}
	return card
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// SearchLines renders search hits, one per line, with a note when only part
// of the matches is shown.
func SearchLines(list *octane.EntityList) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, e := range list.Data {
		fmt.Fprintf(&b, "ID: %s | Summary: %s\n", e.ID(), tagPattern.ReplaceAllString(octane.SearchSummary(e), ""))
	}
	if list.TotalCount > len(list.Data) {
		fmt.Fprintf(&b, "Only %d out of %d results are displayed.", len(list.Data), list.TotalCount)
	}
	return b.String()
}
