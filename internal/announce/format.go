package announce

import (
	"fmt"
	"html"
	"strings"

	"rda_bot/internal/model"
)

// DefaultWrap is the number of RDA codes per line in the compact view.
const DefaultWrap = 10

// NewHeader prefixes periodic broadcasts of freshly published announcements.
const NewHeader = "🆕 <b>Новые анонсы</b>\n\n"

// Format renders announcements as Telegram HTML, one block per record,
// blocks separated by a blank line. RDA codes are wrapped every wrap codes;
// wrap <= 0 keeps them on one line. An empty input renders as "".
func Format(records []model.Announcement, wrap int) string {
	blocks := make([]string, 0, len(records))
	for _, a := range records {
		blocks = append(blocks, formatOne(a, wrap))
	}
	return strings.Join(blocks, "\n\n")
}

func formatOne(a model.Announcement, wrap int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📡 <b>%s</b> (<i>%s—%s</i>)\n",
		html.EscapeString(a.Callsign), html.EscapeString(a.DateFrom), html.EscapeString(a.DateTo))
	fmt.Fprintf(&b, "🏷️ <b>%d</b> районов: %s\n", len(a.RDAs), wrapCodes(a.RDAs, wrap))
	fmt.Fprintf(&b, "🔗 источник: <i>%s</i> • ➕ %s",
		html.EscapeString(a.Source), html.EscapeString(a.Added))
	return b.String()
}

func wrapCodes(codes []string, wrap int) string {
	if wrap <= 0 {
		return html.EscapeString(strings.Join(codes, ", "))
	}
	var lines []string
	for i := 0; i < len(codes); i += wrap {
		end := min(i+wrap, len(codes))
		lines = append(lines, html.EscapeString(strings.Join(codes[i:end], ", ")))
	}
	return strings.Join(lines, ",\n")
}
