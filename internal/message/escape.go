// Package message renders subscriber templates and prepares text for
// Telegram: HTML escaping and splitting into message-sized chunks.
package message

import (
	"regexp"
	"strings"
)

// emphasisTags are the tags that survive escaping.
var emphasisTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true, "code": true, "pre": true,
}

var entityRe = regexp.MustCompile(`^&(?:amp|lt|gt|quot|#[0-9]{1,7}|#x[0-9a-fA-F]{1,6});`)

// EscapeHTML escapes markup characters for Telegram's HTML parse mode while
// keeping the emphasis tags <b>, <i>, <u>, <s>, <code>, <pre> (opening and
// closing, without attributes) and entities that are already escaped.
func EscapeHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch s[i] {
		case '<':
			if n := emphasisTagLen(s[i:]); n > 0 {
				b.WriteString(s[i : i+n])
				i += n
				continue
			}
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			if loc := entityRe.FindStringIndex(s[i:]); loc != nil {
				b.WriteString(s[i : i+loc[1]])
				i += loc[1]
				continue
			}
			b.WriteString("&amp;")
		default:
			b.WriteByte(s[i])
		}
		i++
	}
	return b.String()
}

// emphasisTagLen returns the byte length of a whitelisted tag at the start of
// s, or 0.
func emphasisTagLen(s string) int {
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return 0
	}
	name, _ := tagName(s[:end+1])
	if !emphasisTags[name] {
		return 0
	}
	return end + 1
}

// tagName extracts the lower-case name of a tag like "<b>" or "</code>".
// It returns "" for anything carrying attributes or whitespace.
func tagName(tag string) (name string, closing bool) {
	if len(tag) < 3 || tag[0] != '<' || tag[len(tag)-1] != '>' {
		return "", false
	}
	inner := tag[1 : len(tag)-1]
	if strings.HasPrefix(inner, "/") {
		closing = true
		inner = inner[1:]
	}
	if inner == "" || strings.ContainsAny(inner, " \t\n\"'=/<") {
		return "", false
	}
	return strings.ToLower(inner), closing
}
