package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"rda_bot/internal/message"
	"rda_bot/internal/model"
)

// sampleSpot fills the preview shown after /set_template.
var sampleSpot = model.Spot{
	Callsign: "R9ABC/P",
	Time:     "12:34",
	Freq:     14074,
	RawFreq:  "14074.0",
	Mode:     "DIGI",
	RDA:      "OM-07",
	Comment:  "tnx qso",
	Spotter:  "UA9XYZ",
}

func placeholderList() string {
	names := make([]string, len(message.Placeholders))
	for i, p := range message.Placeholders {
		names[i] = "{" + p + "}"
	}
	return strings.Join(names, " ")
}

// FormatFilters renders the filter settings of a subscriber.
func FormatFilters(f model.SubscriberFilter) string {
	mode := f.Mode
	if mode == "" {
		mode = model.ModeAny
	}
	rdas := "все"
	if len(f.RDAs) > 0 {
		rdas = strings.Join(f.RDAs, "; ")
	}
	tmpl := "стандартный"
	if f.Template != "" {
		tmpl = "<code>" + html.EscapeString(f.Template) + "</code>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", mode)
	fmt.Fprintf(&b, "Band: %s МГц\n", formatBand(f.BandLow, f.BandHigh))
	fmt.Fprintf(&b, "RDA: %s\n", rdas)
	fmt.Fprintf(&b, "Шаблон: %s", tmpl)
	return b.String()
}

// formatBand prints the band bounds, showing unbounded ends as the widest
// possible range.
func formatBand(low, high *float64) string {
	lo, hi := model.DefaultBandLow, model.DefaultBandHigh
	if low != nil {
		lo = *low
	}
	if high != nil {
		hi = *high
	}
	return strconv.FormatFloat(lo, 'f', -1, 64) + "–" + strconv.FormatFloat(hi, 'f', -1, 64)
}

// Status is the snapshot printed by /status.
type Status struct {
	Announcements int
	Spots         int
	Tracked       int
	Stream        StreamStatus
	Started       time.Time
	Catalogue     int
}

// FormatStatus renders a Status.
func FormatStatus(s Status) string {
	var b strings.Builder
	b.WriteString("📊 <b>Статус</b>\n")
	fmt.Fprintf(&b, "Подписчики анонсов: %s\n", humanize.Comma(int64(s.Announcements)))
	fmt.Fprintf(&b, "Подписчики спотов: %s\n", humanize.Comma(int64(s.Spots)))
	fmt.Fprintf(&b, "Известных анонсов: %s\n", humanize.Comma(int64(s.Tracked)))
	if s.Stream != nil {
		fmt.Fprintf(&b, "Поток спотов: %s (подключений: %s)\n",
			s.Stream.State(), humanize.Comma(s.Stream.Sessions()))
	}
	if s.Catalogue > 0 {
		fmt.Fprintf(&b, "Справочник RDA: %s кодов\n", humanize.Comma(int64(s.Catalogue)))
	} else {
		b.WriteString("Справочник RDA: не загружен\n")
	}
	if !s.Started.IsZero() {
		fmt.Fprintf(&b, "Запущен: %s", humanize.Time(s.Started))
	}
	return strings.TrimRight(b.String(), "\n")
}
