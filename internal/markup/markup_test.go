package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markers(tag, _ string, paired bool) Replacement {
	if !paired {
		return Replacement{Self: "|"}
	}
	switch tag {
	case "b":
		return Replacement{Start: "[B]", End: "[/B]"}
	case "i":
		return Replacement{Start: "[I]", End: "[/I]"}
	}
	return Replacement{}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "bold and italic in order", src: "<b>hi</b> <i>there</i>", want: "[B]hi[/B] [I]there[/I]"},
		{name: "nested", src: "<b>a<i>b</i>c</b>", want: "[B]a[I]b[/I]c[/B]"},
		{name: "nested same tag", src: "<b>a<b>b</b>c</b>", want: "[B]a[B]b[/B]c[/B]"},
		{name: "unknown paired tag stripped", src: "<div>x</div>", want: "x"},
		{name: "single tags", src: "a<br>b<br/>c", want: "a|b|c"},
		{name: "stray closer is a single tag", src: "a</b>c", want: "a|c"},
		{name: "attributes ignored by rule", src: `<b class="x">y</b>`, want: "[B]y[/B]"},
		{name: "line wrap noise removed", src: "<b>a</b> \n<i>b</i>\n", want: "[B]a[/B][I]b[/I]"},
		{name: "literal less-than kept", src: "1 < 2 and 3 > 2", want: "1 < 2 and 3 > 2"},
		{name: "unterminated tag kept", src: "x <b y", want: "x <b y"},
		{name: "empty", src: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate(tt.src, markers))
		})
	}
}

func TestTranslateReplacementsAreNotRescanned(t *testing.T) {
	rule := func(tag, _ string, paired bool) Replacement {
		if paired {
			return Replacement{Start: "<b>", End: "</b>"}
		}
		return Replacement{Self: "<br>"}
	}
	got := Translate("<b>x</b><br>", rule)
	assert.Equal(t, "<b>x</b><br>", got)
}

func TestTranslateNilRuleStripsTags(t *testing.T) {
	assert.Equal(t, "hello world", Translate("<p>hello <b>world</b></p><br/>", nil))
}

func TestTranslateTagFreeTextUnchanged(t *testing.T) {
	for _, s := range []string{"plain", "a & b", "tabs\tand spaces", "&nbsp; stays"} {
		assert.Equal(t, s, Translate(s, markers))
	}
	assert.Equal(t, "ab", Translate("a \nb", markers))
}

func TestGetAttributeValue(t *testing.T) {
	tests := []struct {
		name   string
		attr   string
		attrs  string
		want   string
		wantOK bool
	}{
		{name: "href", attr: "href", attrs: `<a href="http://x" class="y">`, want: "http://x", wantOK: true},
		{name: "spaces around equals", attr: "style", attrs: ` style = "margin-left:40px;"`, want: "margin-left:40px;", wantOK: true},
		{name: "absent", attr: "href", attrs: ` class="y"`},
		{name: "empty value", attr: "href", attrs: ` href=""`},
		{name: "regexp metacharacters in name", attr: "data.x", attrs: ` dataax="1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetAttributeValue(tt.attr, tt.attrs)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEntities(t *testing.T) {
	got := DecodeEntities("&lt;a&gt; &unknown; &amp;", HTMLEntities)
	assert.Equal(t, "<a> &unknown; &", got)
}

func TestSlackLinkPlaceholdersRoundTrip(t *testing.T) {
	enc := Translate(`<a href="http://x">site</a>`, SlackRule)
	assert.Equal(t, "&slack_lt;http://x|site&slack_gt;", enc)
	assert.Equal(t, "<http://x|site>", DecodeEntities(enc, SlackEntities))
}

func TestToSlack(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "bold", src: "<b>x</b>", want: "\u200b*\u200dx\u200d*\u200b"},
		{name: "italic span", src: `<span style="font-style:italic;">x</span>`, want: "\u200b_\u200dx\u200d_\u200b"},
		{name: "strikethrough", src: "<s>x</s>", want: "\u200b~\u200dx\u200d~\u200b"},
		{name: "link without href stripped", src: "<a>x</a>", want: "x"},
		{name: "paragraph", src: "<p>a</p><p>b</p>", want: "\na\nb"},
		{name: "indented paragraph", src: `<p style="margin-left:80px;">a</p>`, want: "\n\t\ta"},
		{name: "partial indent rounds up", src: `<p style="margin-left:60px;">a</p>`, want: "\n\t\ta"},
		{name: "list items", src: "<ul><li>one</li><li>two</li></ul>", want: "\n\t• one\n\t• two"},
		{name: "line break", src: "a<br />b", want: "a\nb"},
		{name: "entities", src: "it&apos;s &quot;x&quot;&nbsp;&amp;", want: "it's \"x\"\u00a0&amp;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSlack(tt.src))
		})
	}
}

func TestToSlackMemo(t *testing.T) {
	memo := "<html><body>\n<p>Steps:</p> \n<ol><li><b>open</b> the <a href=\"http://app\">app</a></li></ol>\n</body></html>"
	got := ToSlack(memo)
	require.NotContains(t, got, "<html>")
	assert.True(t, strings.HasPrefix(got, "\nSteps:"))
	assert.Contains(t, got, "\n\t• \u200b*\u200dopen\u200d*\u200b the <http://app|app>")
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a <b> & c", PlainText("<p>a &lt;b&gt; &amp; <i>c</i></p>"))
}
