package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"horror-nobel-api/internal/application/typeset"
	"horror-nobel-api/internal/config"
	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/metrics"
)

const (
	mmPerInch = 25.4
	ptPerInch = 72.0

	// FooterText 最后一页的页脚
	FooterText = "この物語は「Your Horror Nobel」であなたとAIが共同創作した、世界に一つだけのオリジナル作品です。"
	// PlaceholderText 正文为空时的提示
	PlaceholderText = "物語の本文が見つかりませんでした。"
)

var (
	plainBackground = canvas.Hex("#f4efe6")
	titleColor      = canvas.Hex("#7a0a0a")
	textColor       = canvas.Hex("#1c1410")
	footerColor     = canvas.Hex("#5a4a40")
)

var errNoFont = errors.New("no font available")

// 各类文字的像素字号与行高
type textSpec struct {
	size       float64
	lineHeight float64
	color      color.Color
}

var textSpecs = map[typeset.Style]textSpec{
	typeset.StyleTitle:       {size: 44, lineHeight: 72, color: titleColor},
	typeset.StyleHeader:      {size: 34, lineHeight: 56, color: titleColor},
	typeset.StyleBody:        {size: 28, lineHeight: 46, color: textColor},
	typeset.StyleFooter:      {size: 20, lineHeight: 32, color: footerColor},
	typeset.StylePlaceholder: {size: 28, lineHeight: 46, color: textColor},
}

// Renderer 小说 PDF 渲染器
type Renderer struct {
	cfg    config.PDFConfig
	assets Assets

	once       sync.Once
	family     *canvas.FontFamily
	embedded   bool
	background image.Image
}

// NewRenderer 定位资源并创建渲染器，字体与背景在首次渲染时加载
func NewRenderer(cfg *config.PDFConfig) *Renderer {
	c := *cfg
	if c.PageWidth <= 0 || c.PageHeight <= 0 {
		c.PageWidth, c.PageHeight = 1240, 1754
	}
	if c.DPI <= 0 {
		c.DPI = 150
	}
	return &Renderer{
		cfg:    c,
		assets: LocateAssets(c.BackgroundPaths, c.FontPaths),
	}
}

// Assets 已定位的资源
func (r *Renderer) Assets() Assets {
	return r.assets
}

func (r *Renderer) load(ctx context.Context) {
	r.once.Do(func() {
		if r.assets.Font != "" {
			family, err := loadFamily(r.assets.Font)
			if err != nil {
				logger.Warn(ctx, "failed to load pdf font", "path", r.assets.Font, "error", err.Error())
			} else {
				r.family = family
			}
		}
		if r.family == nil {
			family, err := embeddedFamily()
			if err != nil {
				logger.Warn(ctx, "failed to load embedded pdf font", "error", err.Error())
			} else {
				r.family, r.embedded = family, true
			}
		}
		if r.assets.Background != "" {
			img, err := loadImage(r.assets.Background)
			if err != nil {
				logger.Warn(ctx, "failed to load pdf background", "path", r.assets.Background, "error", err.Error())
			} else {
				r.background = img
			}
		}
	})
}

func loadFamily(path string) (*canvas.FontFamily, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("horror-nobel")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	return family, nil
}

// embeddedFamily 内置的 Latin Modern 字体，不含 CJK 字形
func embeddedFamily() (*canvas.FontFamily, error) {
	family := canvas.NewFontFamily("horror-nobel-fallback")
	if err := family.LoadFont(lmroman10regular.TTF, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	return family, nil
}

func (r *Renderer) pxToMM(px float64) float64 { return px * mmPerInch / r.cfg.DPI }
func (r *Renderer) mmToPx(mm float64) float64 { return mm * r.cfg.DPI / mmPerInch }
func (r *Renderer) pxToPt(px float64) float64 { return px * ptPerInch / r.cfg.DPI }

func (r *Renderer) face(style typeset.Style) *canvas.FontFace {
	spec := textSpecs[style]
	return r.family.Face(r.pxToPt(spec.size), spec.color, canvas.FontRegular, canvas.FontNormal)
}

// metric 未找到配置字体时返回 nil，排版回落到定长折行
func (r *Renderer) metric(style typeset.Style) typeset.MetricFunc {
	if r.family == nil || r.embedded {
		return nil
	}
	face := r.face(style)
	return func(s string) float64 {
		return r.mmToPx(face.TextWidth(s))
	}
}

func (r *Renderer) textStyle(style typeset.Style) typeset.TextStyle {
	return typeset.TextStyle{Metric: r.metric(style), LineHeight: textSpecs[style].lineHeight}
}

// Layout 当前资源下的页面排版参数
func (r *Renderer) Layout() typeset.Layout {
	return typeset.Layout{
		PageWidth:       r.cfg.PageWidth,
		PageHeight:      r.cfg.PageHeight,
		TopMargin:       r.cfg.TopMargin,
		BottomMargin:    r.cfg.BottomMargin,
		LeftMargin:      r.cfg.SideMargin,
		RightMargin:     r.cfg.SideMargin,
		Title:           r.textStyle(typeset.StyleTitle),
		Header:          r.textStyle(typeset.StyleHeader),
		Body:            r.textStyle(typeset.StyleBody),
		Footer:          r.textStyle(typeset.StyleFooter),
		PostTitleGap:    60,
		PreHeaderGap:    36,
		PostHeaderGap:   16,
		ParagraphGap:    22,
		FooterOffset:    r.cfg.BottomMargin * 0.6,
		FooterText:      FooterText,
		PlaceholderText: PlaceholderText,
	}
}

// Render 把小说渲染为 PDF。任何失败都以 Fallback 结果返回，调用方总能拿到可用文件。
func (r *Renderer) Render(ctx context.Context, novel string) []byte {
	r.load(ctx)

	out, err := r.render(ctx, novel)
	if err != nil {
		reason := "render"
		if errors.Is(err, errNoFont) {
			reason = "font"
		}
		metrics.PDFFallbackTotal.WithLabelValues(reason).Inc()
		logger.Error(ctx, "pdf render failed, using fallback document", err, "reason", reason)
		return Fallback()
	}
	return out
}

func (r *Renderer) render(ctx context.Context, novel string) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf render panic: %v", rec)
		}
	}()

	doc, err := typeset.ParseManuscript(novel)
	if err != nil {
		return nil, err
	}
	doc.Title = doc.TitleOrDefault()

	if r.family == nil {
		return nil, errNoFont
	}
	if r.embedded {
		metrics.PDFFallbackTotal.WithLabelValues("font").Inc()
	}
	layout := r.Layout()
	pages := typeset.Paginate(doc, layout)
	if r.background == nil {
		metrics.PDFFallbackTotal.WithLabelValues("background").Inc()
	}

	w, h := r.pxToMM(layout.PageWidth), r.pxToMM(layout.PageHeight)
	var buf bytes.Buffer
	writer := pdf.New(&buf, w, h, nil)
	writer.SetInfo(doc.Title, "", "", "", "Your Horror Nobel")

	for i, page := range pages {
		if i > 0 {
			writer.NewPage(w, h)
		}
		c := canvas.New(w, h)
		cctx := canvas.NewContext(c)
		cctx.SetCoordSystem(canvas.CartesianIV)

		r.drawBackground(cctx, w, h)
		for _, cmd := range page.Commands {
			r.drawCommand(cctx, cmd)
		}
		c.RenderTo(writer)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	metrics.PDFPagesRendered.Observe(float64(len(pages)))
	logger.Debug(ctx, "pdf rendered", "pages", len(pages), "size", humanize.Bytes(uint64(buf.Len())))
	return buf.Bytes(), nil
}

func (r *Renderer) drawBackground(ctx *canvas.Context, w, h float64) {
	if r.background != nil {
		dpmm := float64(r.background.Bounds().Dx()) / w
		if dpmm <= 0 {
			dpmm = 1
		}
		ctx.DrawImage(0, 0, r.background, canvas.DPMM(dpmm))
		return
	}
	ctx.SetFillColor(plainBackground)
	ctx.DrawPath(0, 0, canvas.Rectangle(w, h))
}

func (r *Renderer) drawCommand(ctx *canvas.Context, cmd typeset.DrawCommand) {
	face := r.face(cmd.Style)
	align := canvas.Left
	if cmd.Align == typeset.AlignCenter {
		align = canvas.Center
	}
	line := canvas.NewTextLine(face, cmd.Text, align)
	baseline := r.pxToMM(cmd.Y) + face.Metrics().Ascent
	ctx.DrawText(r.pxToMM(cmd.X), baseline, line)
}
