package message

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"rda_bot/internal/model"
)

// DefaultTemplate is used for subscribers that never set their own.
const DefaultTemplate = "📡 <b>{callsign}</b> {freq} {mode}\n" +
	"🗺 RDA: <b>{rda}</b>\n" +
	"💬 {text}\n" +
	"👤 {spotter} • 🕒 {time}"

// Placeholders lists the names a template may reference.
var Placeholders = []string{"callsign", "mode", "freq", "rda", "text", "spotter", "time"}

var precisionSpec = regexp.MustCompile(`^\.(\d)f$`)

// TemplateError reports an invalid subscriber template.
type TemplateError struct {
	Pos    int
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template at offset %d: %s", e.Pos, e.Reason)
}

// Validate checks that tmpl only references known placeholders and has
// balanced braces.
func Validate(tmpl string) error {
	_, err := render(tmpl, model.Spot{})
	return err
}

// Render fills tmpl with the spot fields. Placeholders are written as {name};
// {{ and }} produce literal braces, and {freq:.Nf} formats the frequency with
// N decimals. Values are HTML-escaped; markup in the template itself goes
// through EscapeHTML.
func Render(tmpl string, s model.Spot) (string, error) {
	return render(tmpl, s)
}

func render(tmpl string, s model.Spot) (string, error) {
	var (
		out     strings.Builder
		literal strings.Builder
	)
	flushLiteral := func() {
		out.WriteString(EscapeHTML(literal.String()))
		literal.Reset()
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			literal.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			literal.WriteByte('}')
			i++
		case c == '}':
			return "", &TemplateError{Pos: i, Reason: "single '}' is not allowed"}
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", &TemplateError{Pos: i, Reason: "unclosed '{'"}
			}
			val, err := field(tmpl[i+1:i+end], s)
			if err != nil {
				return "", &TemplateError{Pos: i, Reason: err.Error()}
			}
			flushLiteral()
			out.WriteString(html.EscapeString(val))
			i += end
		default:
			literal.WriteByte(c)
		}
	}
	flushLiteral()
	return out.String(), nil
}

func field(expr string, s model.Spot) (string, error) {
	name, spec, hasSpec := strings.Cut(expr, ":")
	if hasSpec && name != "freq" {
		return "", fmt.Errorf("format spec is only supported for {freq}")
	}
	switch name {
	case "callsign":
		return s.Callsign, nil
	case "mode":
		return s.Mode, nil
	case "freq":
		if hasSpec {
			m := precisionSpec.FindStringSubmatch(spec)
			if m == nil {
				return "", fmt.Errorf("unsupported format spec %q, use .Nf", spec)
			}
			prec, _ := strconv.Atoi(m[1])
			return strconv.FormatFloat(s.Freq, 'f', prec, 64), nil
		}
		if s.RawFreq != "" {
			return s.RawFreq, nil
		}
		return strconv.FormatFloat(s.Freq, 'f', -1, 64), nil
	case "rda":
		return s.RDA, nil
	case "text":
		return strings.TrimSpace(s.Comment), nil
	case "spotter":
		return s.Spotter, nil
	case "time":
		return s.Time, nil
	}
	return "", fmt.Errorf("unknown placeholder {%s}, use: %s", name, strings.Join(Placeholders, ", "))
}
