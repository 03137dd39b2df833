package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// wideTable switches the page to landscape.
const wideTable = 6

// PDFExporter renders tables as a titled A4 grid.
type PDFExporter struct {
	now func() time.Time
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

// ContentType is the MIME type of rendered output.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension is the file extension of rendered output.
func (e *PDFExporter) Extension() string { return "pdf" }

// Render draws the title, a repeated header row and the body, one page after another.
func (e *PDFExporter) Render(table Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("pdf requires at least one column")
	}
	orientation, width := "P", 190.0
	if len(table.Columns) > wideTable {
		orientation, width = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	colWidth := width / float64(len(table.Columns))

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range table.Columns {
			pdf.CellFormat(colWidth, 8, tr(col), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	generated := e.now().UTC().Format("02 Jan 2006 15:04 MST")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s  |  Page %d", generated, pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	if table.Title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 10, tr(table.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}
	header()
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range table.Rows {
		if pdf.GetY()+7 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i := range table.Columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(colWidth, 7, tr(cell), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
