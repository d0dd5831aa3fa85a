package markup

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	zeroWidthSpace  = "\u200b"
	zeroWidthJoiner = "\u200d"

	// IndentUnit is the left margin, in pixels, of one indentation level in
	// Octane's rich text editor.
	IndentUnit = 40
)

// Link delimiters are emitted as private references so that pass 2 and 3
// never see a literal '<' or '>' in replacement text; pass 4 decodes them.
const (
	slackLinkOpen  = "&slack_lt;"
	slackLinkClose = "&slack_gt;"
)

// SlackEntities is the reference set decoded after a Slack translation.
var SlackEntities = map[string]string{
	"apos":     "'",
	"slack_lt": "<",
	"slack_gt": ">",
	"quot":     `"`,
	"nbsp":     "\u00a0",
}

func emphasis(marker string) Replacement {
	return Replacement{
		Start: zeroWidthSpace + marker + zeroWidthJoiner,
		End:   zeroWidthJoiner + marker + zeroWidthSpace,
	}
}

var (
	slackBold          = emphasis("*")
	slackItalic        = emphasis("_")
	slackStrikethrough = emphasis("~")
)

var marginLeft = regexp.MustCompile(`margin-left:(\d+)px;`)

// SlackRule renders Octane memo tags as Slack mrkdwn.
func SlackRule(tag, attrs string, paired bool) Replacement {
	if !paired {
		switch tag {
		case "br", "p":
			return Replacement{Self: "\n"}
		}
		return Replacement{}
	}

	switch tag {
	case "b":
		return slackBold
	case "i":
		return slackItalic
	case "s":
		return slackStrikethrough
	case "a":
		if href, ok := GetAttributeValue("href", attrs); ok {
			return Replacement{Start: slackLinkOpen + href + "|", End: slackLinkClose}
		}
	case "p":
		return Replacement{Start: "\n" + indentation(attrs)}
	case "li":
		// Slack has no list syntax in app messages; bullets are plain text.
		return Replacement{Start: "\n\t• "}
	case "span":
		style, _ := GetAttributeValue("style", attrs)
		switch style {
		case "font-weight:bold;":
			return slackBold
		case "font-style:italic;":
			return slackItalic
		}
	}
	return Replacement{}
}

// indentation converts a paragraph's margin-left style into tabs, one per
// started IndentUnit.
func indentation(attrs string) string {
	style, ok := GetAttributeValue("style", attrs)
	if !ok {
		return ""
	}
	m := marginLeft.FindStringSubmatch(style)
	if m == nil {
		return ""
	}
	px, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	return strings.Repeat("\t", int(math.Ceil(float64(px)/IndentUnit)))
}

// ToSlack translates an Octane memo into Slack mrkdwn.
func ToSlack(memo string) string {
	return Translator{Rule: SlackRule, Entities: SlackEntities}.Translate(memo)
}
