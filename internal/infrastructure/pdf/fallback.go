package pdf

import (
	"bytes"
	"context"
	"sync"

	"codeberg.org/go-pdf/fpdf"

	"horror-nobel-api/pkg/logger"
)

var (
	fallbackOnce sync.Once
	fallbackPDF  []byte
)

// Fallback 返回一份固定的单页 PDF，在排版或写出失败时代替正式结果
func Fallback() []byte {
	fallbackOnce.Do(func() { fallbackPDF = buildFallback() })
	out := make([]byte, len(fallbackPDF))
	copy(out, fallbackPDF)
	return out
}

// buildFallback 只用 PDF 核心字体 Helvetica，不依赖任何外部资源
func buildFallback() []byte {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Your Horror Nobel", false)
	doc.SetCreator("Your Horror Nobel", false)
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 18)
	doc.Cell(0, 12, "Your Horror Nobel")
	doc.Ln(14)
	doc.SetFont("Helvetica", "", 12)
	doc.MultiCell(0, 6, "The novel could not be typeset. Please try again later.", "", "L", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		logger.Error(context.Background(), "build fallback pdf failed", err)
		return nil
	}
	return buf.Bytes()
}
