package i18n

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultBundle(t *testing.T) {
	r := Default()
	cases := map[string]string{
		"settings.font_size":      "Font Size",
		"settings.show_timestamp": "Show Timestamp",
		"settings.default":        "Reset to default",
		"settings.close":          "Close",
	}
	for key, want := range cases {
		if got := r.Translate("en", key); got != want {
			t.Fatalf("%s: expected %q, got %q", key, want, got)
		}
	}
}

func TestTranslateFallsBack(t *testing.T) {
	r := Default()
	r.SetBulk(Bundle{"de": {"settings.close": "Schließen"}})

	if got := r.Translate("de", "settings.close"); got != "Schließen" {
		t.Fatalf("expected german string, got %q", got)
	}
	if got := r.Translate("de", "settings.font_size"); got != "Font Size" {
		t.Fatalf("expected english fallback, got %q", got)
	}
	if got := r.Translate("de", "settings.unknown"); got != "settings.unknown" {
		t.Fatalf("expected key echo, got %q", got)
	}
	if diff := cmp.Diff([]string{"de", "en"}, r.Locales()); diff != "" {
		t.Fatalf("locales mismatch (-want +got):\n%s", diff)
	}
}

func TestTableMergesFallback(t *testing.T) {
	r := New()
	if err := r.LoadYAML(strings.NewReader("en:\n  a: A\n  b: B\nfr:\n  b: Bé\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]string{"a": "A", "b": "Bé"}
	if diff := cmp.Diff(want, r.Table("fr")); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAMLRejectsBadDocuments(t *testing.T) {
	r := New()
	if err := r.LoadYAML(strings.NewReader("- just\n- a list\n")); err == nil {
		t.Fatal("expected decode error")
	}
	if err := r.LoadYAML(strings.NewReader("")); err != nil {
		t.Fatalf("empty document should be accepted: %v", err)
	}
}

func TestSetFallbackChain(t *testing.T) {
	r := Default()
	r.SetBulk(Bundle{
		"de":    {"settings.close": "Schließen"},
		"de-AT": {"settings.default": "Zurücksetzen"},
	})
	r.SetFallback("de")
	if got := r.Fallback(); got != "de" {
		t.Fatalf("expected fallback de, got %q", got)
	}

	if got := r.Translate("de-AT", "settings.close"); got != "Schließen" {
		t.Fatalf("expected configured fallback, got %q", got)
	}
	if got := r.Translate("de-AT", "settings.font_size"); got != "Font Size" {
		t.Fatalf("expected default locale last, got %q", got)
	}
	table := r.Table("de-AT")
	if table["settings.default"] != "Zurücksetzen" || table["settings.close"] != "Schließen" {
		t.Fatalf("unexpected table %v", table)
	}

	r.SetFallback("")
	if got := r.Fallback(); got != DefaultLocale {
		t.Fatalf("expected reset to %q, got %q", DefaultLocale, got)
	}
}
