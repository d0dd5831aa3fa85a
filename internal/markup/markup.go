// Package markup converts Octane memo fields (a small, flat HTML dialect) into
// chat markup.
//
// Translation runs in four passes:
//
//  1. drop the " \n" / "\n" line-wrap noise Octane inserts into memo text
//  2. resolve paired tags (<b>..</b>), rightmost opener first, until none remain
//  3. resolve the remaining single tags (<br>, <br/>, stray closers) left to right
//  4. decode a caller-supplied set of named character references
//
// The input is tokenized once, so replacement fragments returned by a Rule are
// never re-scanned as markup. Every pass consumes tag tokens, which bounds the
// number of iterations by the number of tags in the source.
package markup

import (
	"regexp"
	"strings"
)

// Replacement holds the fragments a Rule substitutes for a tag. Empty
// fragments strip the tag.
type Replacement struct {
	Start string // emitted in place of the opening tag of a pair
	End   string // emitted in place of the closing tag of a pair
	Self  string // emitted in place of a single tag
}

// Rule maps a tag to its replacement. attrs is the raw text between the tag
// name and the closing '>' (without a trailing '/'). paired reports whether
// the tag was matched with a closing tag.
type Rule func(tag, attrs string, paired bool) Replacement

// StripTags is the default rule: every tag is removed, its content kept.
func StripTags(string, string, bool) Replacement { return Replacement{} }

var lineWrapNoise = regexp.MustCompile(` ?\n`)

// Translate runs passes 1-3 over src using rule. A nil rule strips all tags.
func Translate(src string, rule Rule) string {
	if rule == nil {
		rule = StripTags
	}

	toks := tokenize(lineWrapNoise.ReplaceAllString(src, ""))

	// Pass 2: paired tags.
	for {
		open, closing := findPair(toks)
		if open < 0 {
			break
		}
		r := rule(toks[open].name, toks[open].attrs, true)
		toks[open] = token{text: r.Start}
		toks[closing] = token{text: r.End}
	}

	// Pass 3: whatever tags are left.
	var b strings.Builder
	for _, t := range toks {
		if !t.tag {
			b.WriteString(t.text)
			continue
		}
		b.WriteString(rule(t.name, t.attrs, false).Self)
	}
	return b.String()
}

// findPair returns the indexes of the rightmost opening tag that has a
// closing tag after it, and of the nearest such closing tag.
func findPair(toks []token) (int, int) {
	for i := len(toks) - 1; i >= 0; i-- {
		t := toks[i]
		if !t.tag || t.closing || t.selfClosing {
			continue
		}
		for j := i + 1; j < len(toks); j++ {
			if toks[j].tag && toks[j].closing && toks[j].name == "/"+t.name {
				return i, j
			}
		}
	}
	return -1, -1
}

// GetAttributeValue returns the double-quoted value of attribute name in
// attrs, e.g. href in `<a href="http://x" class="y">`.
func GetAttributeValue(name, attrs string) (string, bool) {
	re := regexp.MustCompile(regexp.QuoteMeta(name) + ` ?= ?"([^"]*)"`)
	m := re.FindStringSubmatch(attrs)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

var namedReference = regexp.MustCompile(`&([\w_-]+);`)

// DecodeEntities replaces &name; references found in entities with their
// literal value. Unknown references are left untouched.
func DecodeEntities(s string, entities map[string]string) string {
	return namedReference.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := entities[ref[1:len(ref)-1]]; ok {
			return v
		}
		return ref
	})
}

// HTMLEntities is the reference set used for plain-text output.
var HTMLEntities = map[string]string{
	"amp":  "&",
	"apos": "'",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"nbsp": "\u00a0",
}

// Translator bundles a rule with the reference set decoded in pass 4.
type Translator struct {
	Rule     Rule
	Entities map[string]string
}

// Translate runs all four passes.
func (t Translator) Translate(src string) string {
	return DecodeEntities(Translate(src, t.Rule), t.Entities)
}

// PlainText strips all markup and decodes the common HTML references.
func PlainText(src string) string {
	return Translator{Rule: StripTags, Entities: HTMLEntities}.Translate(src)
}
