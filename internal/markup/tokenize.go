package markup

import "strings"

type token struct {
	text string // literal text (tag == false)

	tag         bool
	name        string // "b", or "/b" for a closing tag
	attrs       string
	closing     bool
	selfClosing bool
}

// tokenize splits s into text and tag tokens. A '<' only starts a tag when it
// is followed by a name ending in a word character and a '>' appears before
// the next '<'; anything else stays literal text.
func tokenize(s string) []token {
	var toks []token
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			toks = append(toks, token{text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(s); {
		if s[i] != '<' {
			next := strings.IndexByte(s[i:], '<')
			if next < 0 {
				text.WriteString(s[i:])
				break
			}
			text.WriteString(s[i : i+next])
			i += next
			continue
		}

		t, n, ok := scanTag(s[i:])
		if !ok {
			text.WriteByte('<')
			i++
			continue
		}
		flush()
		toks = append(toks, t)
		i += n
	}
	flush()
	return toks
}

// scanTag parses a tag at the start of s and returns it with its length.
func scanTag(s string) (token, int, bool) {
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return token{}, 0, false
	}
	if lt := strings.IndexByte(s[1:], '<'); lt >= 0 && lt+1 < end {
		return token{}, 0, false
	}

	body := s[1:end]
	closing := strings.HasPrefix(body, "/")
	rest := strings.TrimPrefix(body, "/")

	n := strings.IndexAny(rest, " \t/")
	if n < 0 {
		n = len(rest)
	}
	name := rest[:n]
	if name == "" || !isWordByte(name[len(name)-1]) {
		return token{}, 0, false
	}

	attrs := rest[n:]
	self := strings.HasSuffix(attrs, "/")
	attrs = strings.TrimSuffix(attrs, "/")
	if closing {
		name = "/" + name
	}

	return token{
		tag:         true,
		name:        name,
		attrs:       attrs,
		closing:     closing,
		selfClosing: self,
	}, end + 1, true
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
