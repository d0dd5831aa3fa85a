package commands

import (
	"regexp"
	"strings"
)

// Verb names a recognized command.
type Verb int

const (
	VerbNone Verb = iota
	VerbGet
	VerbSearch
	VerbUpdate
	VerbCreate
	VerbDisplay
	VerbHide
	VerbReset
	VerbStatus
	VerbHelp
	VerbUnknown
)

func (v Verb) String() string {
	switch v {
	case VerbGet:
		return "get"
	case VerbSearch:
		return "search"
	case VerbUpdate:
		return "update"
	case VerbCreate:
		return "create"
	case VerbDisplay:
		return "display"
	case VerbHide:
		return "don't display"
	case VerbReset:
		return "reset"
	case VerbStatus:
		return "status"
	case VerbHelp:
		return "help"
	case VerbUnknown:
		return "unknown"
	default:
		return "none"
	}
}

// Command is a parsed chat command.
type Command struct {
	Verb    Verb
	Subtype string // as typed, lower-cased
	ID      string // get, update
	Args    string // search text, update assignment, create params, field list
	Flag    bool   // display: full size; don't display: match labels
}

const subtypeGroup = `(defect|userstory|feature|epic)`

// Patterns are tried in order; the first match wins.
var grammar = []struct {
	verb    Verb
	pattern *regexp.Regexp
	build   func(m []string) Command
}{
	{
		verb:    VerbReset,
		pattern: regexp.MustCompile(`(?is)^octane\s+reset\s+` + subtypeGroup + `\s+display`),
		build:   func(m []string) Command { return Command{Subtype: m[1]} },
	},
	{
		verb:    VerbHide,
		pattern: regexp.MustCompile("(?is)^octane\\s+(?:-|!|do not|don['`’]?t)\\s*display\\s+(?:(labels?|l)\\s+)?" + subtypeGroup + `\s+(.+)`),
		build:   func(m []string) Command { return Command{Flag: m[1] != "", Subtype: m[2], Args: m[3]} },
	},
	{
		verb:    VerbDisplay,
		pattern: regexp.MustCompile(`(?is)^octane\s+(?:\+|do|add(?:\s+to)?)?\s*display\s+(?:(f|full)\s+)?` + subtypeGroup + `\s+(.+)`),
		build:   func(m []string) Command { return Command{Flag: m[1] != "", Subtype: m[2], Args: m[3]} },
	},
	{
		verb:    VerbGet,
		pattern: regexp.MustCompile(`(?is)^octane\s+get\s+` + subtypeGroup + `(?:\s+([0-9]+))?`),
		build:   func(m []string) Command { return Command{Subtype: m[1], ID: m[2]} },
	},
	{
		verb:    VerbSearch,
		pattern: regexp.MustCompile(`(?is)^octane\s+search\s+` + subtypeGroup + `\s+(.*)`),
		build:   func(m []string) Command { return Command{Subtype: m[1], Args: m[2]} },
	},
	{
		verb:    VerbUpdate,
		pattern: regexp.MustCompile(`(?is)^octane\s+update\s+` + subtypeGroup + `(?:\s+([0-9]+))?(.*)`),
		build:   func(m []string) Command { return Command{Subtype: m[1], ID: m[2], Args: m[3]} },
	},
	{
		verb:    VerbCreate,
		pattern: regexp.MustCompile(`(?is)^octane\s+create\s+` + subtypeGroup + `\s+(.*)`),
		build:   func(m []string) Command { return Command{Subtype: m[1], Args: m[2]} },
	},
	{
		verb:    VerbStatus,
		pattern: regexp.MustCompile(`(?i)^octane\s+status`),
		build:   func([]string) Command { return Command{} },
	},
	{
		verb:    VerbHelp,
		pattern: regexp.MustCompile(`(?i)octane\s+help`),
		build:   func([]string) Command { return Command{} },
	},
	{
		verb:    VerbUnknown,
		pattern: regexp.MustCompile(`(?i)^octane(?:\s+|$)`),
		build:   func([]string) Command { return Command{} },
	},
}

// Parse matches text, already stripped of the bot address, against the
// command grammar. Text that does not start with "octane" yields VerbNone.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	for _, g := range grammar {
		m := g.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cmd := g.build(m)
		cmd.Verb = g.verb
		cmd.Subtype = strings.ToLower(cmd.Subtype)
		return cmd
	}
	return Command{Verb: VerbNone}
}

// address matches a leading bot mention: "hubot", "@hubot", "hubot:".
func addressPattern(botName string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*@*` + regexp.QuoteMeta(botName) + `[:,]?\s+`)
}

// StripAddress removes a leading "@name" or "name:" from text and reports
// whether it was present.
func StripAddress(text, botName string) (string, bool) {
	if botName == "" {
		return text, false
	}
	loc := addressPattern(botName).FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	return text[loc[1]:], true
}
