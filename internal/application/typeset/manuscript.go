package typeset

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// DefaultTitle 稿件没有可识别标题时使用
const DefaultTitle = "あなたの恐怖小説"

// titleMaxRunes 首行短于该长度且不以句号结尾时视为标题
const titleMaxRunes = 50

// 稿件按行切分：标题/小标题行、空行、换行、普通行
var manuscriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Header", Pattern: `[ \t　]*(?:[【■]|#+[ \t　])[^\n]*`},
	{Name: "Blank", Pattern: `\n(?:[ \t　]*\n)+`},
	{Name: "Newline", Pattern: `\n`},
	{Name: "Line", Pattern: `[^\n]+`},
})

type manuscriptAST struct {
	Items []*itemAST `@@*`
}

type itemAST struct {
	Header  *string `  @Header`
	Line    *string `| @Line`
	Blank   *string `| @Blank`
	Newline *string `| @Newline`
}

var manuscriptParser = participle.MustBuild[manuscriptAST](
	participle.Lexer(manuscriptLexer),
)

// ParseManuscript 把生成的小说拆成标题与小标题/正文段落。
// 首个非空行以【开头，或短于 50 字且不以「。」结尾时作为标题；
// 以【、■ 或 Markdown # 开头的行是小标题。
func ParseManuscript(text string) (Document, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimLeft(text, "\n")

	ast, err := manuscriptParser.ParseString("", text)
	if err != nil {
		return Document{}, fmt.Errorf("parse manuscript: %w", err)
	}

	var (
		doc       Document
		body      strings.Builder
		seenFirst bool
	)
	flush := func() {
		if s := strings.TrimSpace(body.String()); s != "" {
			doc.Sections = append(doc.Sections, Section{Kind: SectionBody, Text: s})
		}
		body.Reset()
	}

	for _, item := range ast.Items {
		switch {
		case item.Header != nil:
			raw := strings.TrimSpace(*item.Header)
			if !seenFirst {
				seenFirst = true
				doc.Title = stripHeading(raw)
				continue
			}
			flush()
			if h := stripHeading(raw); h != "" {
				doc.Sections = append(doc.Sections, Section{Kind: SectionHeader, Text: h})
			}
		case item.Line != nil:
			line := cleanMarkup(*item.Line)
			if strings.TrimSpace(line) == "---" {
				body.WriteString("\n\n")
				continue
			}
			if !seenFirst {
				seenFirst = true
				if looksLikeTitle(line) {
					doc.Title = stripHeading(line)
					continue
				}
			}
			body.WriteString(line)
		case item.Blank != nil:
			body.WriteString("\n\n")
		case item.Newline != nil:
			body.WriteString("\n")
		}
	}
	flush()

	return doc, nil
}

// TitleOrDefault 返回标题，为空时使用 DefaultTitle
func (d Document) TitleOrDefault() string {
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	return DefaultTitle
}

func looksLikeTitle(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "【") {
		return true
	}
	return utf8.RuneCountInString(s) < titleMaxRunes && !strings.HasSuffix(s, "。")
}

func stripHeading(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#")
	return strings.Trim(s, "【】■*　 \t")
}

func cleanMarkup(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
