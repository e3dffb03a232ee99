package typeset

import (
	"regexp"
	"strings"
)

// Style 绘制样式
type Style int

const (
	StyleTitle Style = iota
	StyleHeader
	StyleBody
	StyleFooter
	StylePlaceholder
)

// String 样式名
func (s Style) String() string {
	switch s {
	case StyleTitle:
		return "title"
	case StyleHeader:
		return "header"
	case StyleBody:
		return "body"
	case StyleFooter:
		return "footer"
	case StylePlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Align 水平对齐方式
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// DrawCommand 一次定位绘制。Y 为行顶部，X 对左对齐是左边界、对居中是中线。
type DrawCommand struct {
	Text       string
	X          float64
	Y          float64
	LineHeight float64
	Style      Style
	Align      Align
}

// Page 一页上的绘制命令
type Page struct {
	Commands []DrawCommand
}

// SectionKind 稿件段落类型
type SectionKind int

const (
	SectionHeader SectionKind = iota
	SectionBody
)

// Section 稿件中的一段
type Section struct {
	Kind SectionKind
	Text string
}

// Document 待排版的稿件
type Document struct {
	Title    string
	Sections []Section
}

// TextStyle 某一类文字的字宽函数与行高
type TextStyle struct {
	Metric     MetricFunc
	LineHeight float64
}

// Layout 页面几何与各类文字的排版参数，单位均为像素
type Layout struct {
	PageWidth    float64
	PageHeight   float64
	TopMargin    float64
	BottomMargin float64
	LeftMargin   float64
	RightMargin  float64

	Title  TextStyle
	Header TextStyle
	Body   TextStyle
	Footer TextStyle

	PostTitleGap  float64
	PreHeaderGap  float64
	PostHeaderGap float64
	ParagraphGap  float64

	// FooterOffset 页脚行顶部距页面底边的距离
	FooterOffset    float64
	FooterText      string
	PlaceholderText string
}

// ContentWidth 正文可用宽度
func (l Layout) ContentWidth() float64 {
	return l.PageWidth - l.LeftMargin - l.RightMargin
}

// ContentBottom 内容允许到达的最低位置
func (l Layout) ContentBottom() float64 {
	return l.PageHeight - l.BottomMargin
}

var blankLine = regexp.MustCompile(`\n[ \t　]*\n`)

// Paragraphs 按空行切分正文，丢弃空段落
func Paragraphs(body string) []string {
	var out []string
	for _, p := range blankLine.Split(strings.ReplaceAll(body, "\r\n", "\n"), -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Paginate 把稿件排成页面。只有内容需要时才开新页，页脚只出现在最后一页。
// 正文全部为空时返回只含占位提示的一页。
func Paginate(doc Document, l Layout) []Page {
	if !hasBody(doc) {
		return []Page{placeholderPage(l)}
	}

	p := &paginator{layout: l, cursor: l.TopMargin}
	p.open()

	if title := strings.TrimSpace(doc.Title); title != "" {
		for _, line := range Wrap(title, l.Title.Metric, l.ContentWidth()) {
			p.place(line, StyleTitle, AlignCenter, l.Title.LineHeight)
		}
		p.cursor += l.PostTitleGap
	}

	for _, sec := range doc.Sections {
		switch sec.Kind {
		case SectionHeader:
			text := strings.TrimSpace(sec.Text)
			if text == "" {
				continue
			}
			p.cursor += l.PreHeaderGap
			for _, line := range Wrap(text, l.Header.Metric, l.ContentWidth()) {
				p.place(line, StyleHeader, AlignLeft, l.Header.LineHeight)
			}
			p.cursor += l.PostHeaderGap
		case SectionBody:
			for _, para := range Paragraphs(sec.Text) {
				for _, line := range Wrap(para, l.Body.Metric, l.ContentWidth()) {
					p.place(line, StyleBody, AlignLeft, l.Body.LineHeight)
				}
				p.cursor += l.ParagraphGap
			}
		}
	}

	p.footer()
	return p.pages
}

func hasBody(doc Document) bool {
	for _, sec := range doc.Sections {
		if sec.Kind == SectionBody && len(Paragraphs(sec.Text)) > 0 {
			return true
		}
	}
	return false
}

type paginator struct {
	layout Layout
	pages  []Page
	cursor float64
}

func (p *paginator) open() {
	p.pages = append(p.pages, Page{})
	p.cursor = p.layout.TopMargin
}

func (p *paginator) current() *Page {
	return &p.pages[len(p.pages)-1]
}

// place 在游标处绘制一行；会越过底边时先换页。空页上的超高行直接放置，避免产生空白页。
func (p *paginator) place(text string, style Style, align Align, lineHeight float64) {
	if p.cursor+lineHeight > p.layout.ContentBottom() && len(p.current().Commands) > 0 {
		p.open()
	}
	x := p.layout.LeftMargin
	if align == AlignCenter {
		x = p.layout.PageWidth / 2
	}
	page := p.current()
	page.Commands = append(page.Commands, DrawCommand{
		Text:       text,
		X:          x,
		Y:          p.cursor,
		LineHeight: lineHeight,
		Style:      style,
		Align:      align,
	})
	p.cursor += lineHeight
}

// footer 页脚固定在最后一页底部，不参与溢出判断
func (p *paginator) footer() {
	l := p.layout
	if strings.TrimSpace(l.FooterText) == "" {
		return
	}
	page := p.current()
	y := l.PageHeight - l.FooterOffset
	for _, line := range Wrap(l.FooterText, l.Footer.Metric, l.ContentWidth()) {
		page.Commands = append(page.Commands, DrawCommand{
			Text:       line,
			X:          l.PageWidth / 2,
			Y:          y,
			LineHeight: l.Footer.LineHeight,
			Style:      StyleFooter,
			Align:      AlignCenter,
		})
		y += l.Footer.LineHeight
	}
}

func placeholderPage(l Layout) Page {
	text := l.PlaceholderText
	if strings.TrimSpace(text) == "" {
		text = "物語の本文がありません。"
	}
	return Page{Commands: []DrawCommand{{
		Text:       text,
		X:          l.PageWidth / 2,
		Y:          l.TopMargin,
		LineHeight: l.Body.LineHeight,
		Style:      StylePlaceholder,
		Align:      AlignCenter,
	}}}
}
