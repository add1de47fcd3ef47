package bot

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rda_bot/internal/message"
	"rda_bot/internal/model"
)

func TestParseRDACodes(t *testing.T) {
	tests := []struct {
		name string
		args string
		want []string
	}{
		{"empty", "  ", nil},
		{"spaces", "ad-01 BR-10", []string{"AD-01", "BR-10"}},
		{"mixed separators", "AD-01,BR-10; MO-05\nKR-02", []string{"AD-01", "BR-10", "MO-05", "KR-02"}},
		{"trailing comma", "AD-01,", []string{"AD-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseRDACodes(tt.args)); diff != "" {
				t.Errorf("ParseRDACodes(%q) (-want +got):\n%s", tt.args, diff)
			}
		})
	}
}

func TestParseTemplateArg(t *testing.T) {
	tests := []struct {
		args      string
		wantTmpl  string
		wantReset bool
		wantErr   error
	}{
		{args: "", wantErr: ErrEmptyTemplate},
		{args: "reset", wantReset: true},
		{args: " Default ", wantReset: true},
		{args: "OFF", wantReset: true},
		{args: " {callsign}\n{rda} ", wantTmpl: "{callsign}\n{rda}"},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			tmpl, reset, err := ParseTemplateArg(tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tmpl != tt.wantTmpl || reset != tt.wantReset {
				t.Errorf("got (%q, %v), want (%q, %v)", tmpl, reset, tt.wantTmpl, tt.wantReset)
			}
		})
	}
}

func TestFormatFilters(t *testing.T) {
	low, high := 7.0, 7.2
	tests := []struct {
		name string
		f    model.SubscriberFilter
		want string
	}{
		{
			name: "defaults",
			f:    model.SubscriberFilter{},
			want: "Mode: ANY\nBand: 0–99999 МГц\nRDA: все\nШаблон: стандартный",
		},
		{
			name: "everything set",
			f: model.SubscriberFilter{
				Mode:     "SSB",
				BandLow:  &low,
				BandHigh: &high,
				RDAs:     []string{"AD-01", "BR-10"},
				Template: "{callsign} & {rda}",
			},
			want: "Mode: SSB\nBand: 7–7.2 МГц\nRDA: AD-01; BR-10\nШаблон: <code>{callsign} &amp; {rda}</code>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatFilters(tt.f)); diff != "" {
				t.Errorf("FormatFilters (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatStatusWithoutStream(t *testing.T) {
	got := FormatStatus(Status{Announcements: 1500, Spots: 3, Tracked: 12, Catalogue: 2600})
	want := "📊 <b>Статус</b>\n" +
		"Подписчики анонсов: 1,500\n" +
		"Подписчики спотов: 3\n" +
		"Известных анонсов: 12\n" +
		"Справочник RDA: 2,600 кодов"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FormatStatus (-want +got):\n%s", diff)
	}
}

func TestPlaceholderList(t *testing.T) {
	got := placeholderList()
	for _, p := range message.Placeholders {
		if !strings.Contains(got, "{"+p+"}") {
			t.Errorf("placeholder list %q misses {%s}", got, p)
		}
	}
}
