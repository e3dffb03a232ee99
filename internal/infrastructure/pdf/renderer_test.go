package pdf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"horror-nobel-api/internal/application/typeset"
	"horror-nobel-api/internal/config"
	"horror-nobel-api/pkg/metrics"
)

func TestLocateAssetsPicksFirstExisting(t *testing.T) {
	dir := t.TempDir()
	second := filepath.Join(dir, "b.png")
	third := filepath.Join(dir, "c.png")
	for _, p := range []string{second, third} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	a := LocateAssets([]string{filepath.Join(dir, "missing.png"), dir, second, third}, nil)
	if a.Background != second {
		t.Fatalf("Background = %q", a.Background)
	}
	if a.Font != "" {
		t.Fatalf("Font = %q", a.Font)
	}
}

func TestFallbackIsMinimalPDF(t *testing.T) {
	out := Fallback()
	if !bytes.HasPrefix(out, []byte("%PDF-")) || !bytes.Contains(out, []byte("%%EOF")) {
		t.Fatalf("unexpected fallback framing: %q", out[:min(len(out), 20)])
	}
	if !bytes.Contains(out, []byte("/Helvetica")) {
		t.Fatal("fallback should use the core Helvetica font")
	}
	// 调用方修改返回值不影响下一次结果
	out[0] = 'X'
	if Fallback()[0] != '%' {
		t.Fatal("Fallback should return a copy")
	}
}

func noAssetsConfig() *config.PDFConfig {
	return &config.PDFConfig{
		BackgroundPaths: []string{"/nonexistent/bg.png"},
		FontPaths:       []string{"/nonexistent/font.ttf"},
		TopMargin:       160,
		BottomMargin:    160,
		SideMargin:      130,
	}
}

func TestRenderWithoutFontUsesEmbeddedFace(t *testing.T) {
	r := NewRenderer(noAssetsConfig())
	out := r.Render(context.Background(), "【夜の廊下】\n\n足音が近づく。")
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("expected a pdf")
	}
	if bytes.Equal(out, Fallback()) {
		t.Fatal("story text should be rendered with the embedded face, got fallback")
	}
	if !r.embedded {
		t.Fatal("expected the embedded face to be loaded")
	}
	// 内置字体下仍按定长折行排版
	if l := r.Layout(); l.Body.Metric != nil {
		t.Fatal("body metric should stay nil with the embedded face")
	}
}

func fallbackCount(t *testing.T, reason string) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.PDFFallbackTotal.WithLabelValues(reason).Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestRenderWithoutFontCountsFontFallback(t *testing.T) {
	before := fallbackCount(t, "font")
	renderBefore := fallbackCount(t, "render")

	NewRenderer(noAssetsConfig()).Render(context.Background(), "足音が近づく。")

	if got := fallbackCount(t, "font"); got != before+1 {
		t.Fatalf("font fallback = %v, want %v", got, before+1)
	}
	if got := fallbackCount(t, "render"); got != renderBefore {
		t.Fatalf("render fallback changed: %v -> %v", renderBefore, got)
	}
}

func TestLayoutWithoutFontUsesFixedWrap(t *testing.T) {
	r := NewRenderer(noAssetsConfig())
	l := r.Layout()
	if l.Body.Metric != nil || l.Title.Metric != nil {
		t.Fatal("metrics should be nil without a font")
	}
	if l.PageWidth != 1240 || l.PageHeight != 1754 || l.FooterText != FooterText {
		t.Fatalf("layout = %+v", l)
	}

	pages := typeset.Paginate(typeset.Document{
		Title:    "題",
		Sections: []typeset.Section{{Kind: typeset.SectionBody, Text: strings.Repeat("闇", 60)}},
	}, l)
	if len(pages) != 1 {
		t.Fatalf("pages = %d", len(pages))
	}
}

func TestRenderWithSystemFont(t *testing.T) {
	cfg := noAssetsConfig()
	cfg.FontPaths = []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	}
	r := NewRenderer(cfg)
	if r.Assets().Font == "" {
		t.Skip("no system font available")
	}

	out := r.Render(context.Background(), "Night Corridor\n\nFootsteps came closer.\n\nThen silence.")
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("expected a pdf")
	}
	if bytes.Equal(out, Fallback()) {
		t.Fatal("expected a rendered document, got fallback")
	}
}
