package markup

import (
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestEscapeForMarkdown(t *testing.T) {
	got := EscapeForMarkdown("BTC-USD (1.5%) _up_!")
	want := `BTC\-USD \(1\.5%\) \_up\_\!`
	if got != want {
		t.Errorf("EscapeForMarkdown = %q, want %q", got, want)
	}
}

func TestTruncateByWidth(t *testing.T) {
	got := Truncate("比特币突破七万美元", 10)
	if w := runewidth.StringWidth(got); w > 10 {
		t.Errorf("width of %q = %d, want <= 10", got, w)
	}

	if got := Truncate("short", 10); got != "short" {
		t.Errorf("short string must not change, got %q", got)
	}
}

func TestPad(t *testing.T) {
	for _, s := range []string{"Jinse", "金色财经", "AVeryLongSourceName"} {
		if w := runewidth.StringWidth(Pad(s, 12)); w != 12 {
			t.Errorf("Pad(%q) width = %d, want 12", s, w)
		}
	}
}
