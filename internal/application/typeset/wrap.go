// Package typeset 把小说文本排成固定尺寸的页面：解析稿件、按字宽换行、分页
package typeset

import (
	"strings"
)

// FallbackLineRunes 字体不可用时每行的固定字数
const FallbackLineRunes = 25

// MetricFunc 返回字符串在目标字体下的像素宽度
type MetricFunc func(s string) float64

// breakable 换行时可在其后断开的字符
var breakable = map[rune]bool{
	'。': true, '、': true, '，': true, '．': true, '！': true, '？': true,
	'」': true, '』': true, '）': true,
	',': true, '.': true, '!': true, '?': true,
	' ': true, '\t': true, '　': true,
}

// IsBreakable 判断 r 之后是否允许断行
func IsBreakable(r rune) bool {
	return breakable[r]
}

// Wrap 按像素宽度把文本折成多行。
// metric 为 nil 时按 FallbackLineRunes 定长折行；单个超宽字符独占一行。
// 文本中的换行符视为强制换行。
func Wrap(text string, metric MetricFunc, maxWidth float64) []string {
	if metric == nil {
		return wrapFixed(text, FallbackLineRunes)
	}

	w := &wrapper{metric: metric, maxWidth: maxWidth}
	for _, r := range text {
		if r == '\n' {
			w.flush()
			continue
		}
		w.push(r)
	}
	w.flush()
	return w.lines
}

type wrapper struct {
	metric   MetricFunc
	maxWidth float64
	line     []rune
	lines    []string
}

// push 追加一个字符；溢出时回退到最近的可断字符处断行
func (w *wrapper) push(r rune) {
	if isSpace(r) {
		if len(w.line) == 0 {
			return
		}
		// 空白本身溢出时直接在此断行并丢弃该空白
		if w.metric(string(append(w.line, r))) > w.maxWidth {
			w.emit(w.line)
			w.line = w.line[:0]
			return
		}
	}
	w.line = append(w.line, r)
	for len(w.line) > 1 && w.metric(string(w.line)) > w.maxWidth {
		head := w.line[:len(w.line)-1]
		cut := lastBreakable(head)
		if cut < 0 {
			cut = len(head) - 1
		}
		w.emit(w.line[:cut+1])
		w.line = trimLeadingSpace(append([]rune(nil), w.line[cut+1:]...))
	}
}

func (w *wrapper) flush() {
	if len(w.line) > 0 {
		w.emit(w.line)
	}
	w.line = w.line[:0]
}

func (w *wrapper) emit(line []rune) {
	s := strings.TrimRight(string(line), " \t　")
	if s != "" {
		w.lines = append(w.lines, s)
	}
}

func lastBreakable(line []rune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if breakable[line[i]] {
			return i
		}
	}
	return -1
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '　'
}

func trimLeadingSpace(line []rune) []rune {
	for len(line) > 0 && isSpace(line[0]) {
		line = line[1:]
	}
	return line
}

// wrapFixed 不依赖字宽的定长折行
func wrapFixed(text string, perLine int) []string {
	if perLine <= 0 {
		perLine = FallbackLineRunes
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		runes := []rune(strings.TrimSpace(para))
		for len(runes) > perLine {
			lines = append(lines, string(runes[:perLine]))
			runes = trimLeadingSpace(runes[perLine:])
		}
		if len(runes) > 0 {
			lines = append(lines, string(runes))
		}
	}
	return lines
}
