package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a tabular PDF. Landscape A4: shift
// rows carry six columns and need the width.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

const pdfTableWidth = 277.0

// Render creates a single-table PDF with an optional centered title and
// a page-number footer. Odd rows are lightly shaded.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	cellW := pdfTableWidth / float64(len(data.Headers))
	writeHeaderRow(pdf, data.Headers, cellW)
	for i, row := range data.Rows {
		writeDataRow(pdf, data.Headers, row, cellW, i%2 == 1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeaderRow(pdf *gofpdf.Fpdf, headers []string, cellW float64) {
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for _, header := range headers {
		pdf.CellFormat(cellW, 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	pdf.SetFillColor(248, 248, 248)
}

func writeDataRow(pdf *gofpdf.Fpdf, headers []string, row map[string]string, cellW float64, shade bool) {
	for _, header := range headers {
		pdf.CellFormat(cellW, 7, row[header], "1", 0, "", shade, 0, "")
	}
	pdf.Ln(-1)
}
