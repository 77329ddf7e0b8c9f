package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptField is one labelled line on a receipt document.
type ReceiptField struct {
	Label string
	Value string
}

// ReceiptDocument describes a single payment receipt.
type ReceiptDocument struct {
	Title         string
	ReceiptNumber string
	Fields        []ReceiptField
	AmountLabel   string
	AmountValue   string
	FooterNote    string
}

// ReceiptRenderer produces A5 receipt PDFs.
type ReceiptRenderer struct{}

// NewReceiptRenderer constructs a receipt renderer.
func NewReceiptRenderer() *ReceiptRenderer {
	return &ReceiptRenderer{}
}

// Render draws the receipt and returns the PDF bytes.
func (r *ReceiptRenderer) Render(doc ReceiptDocument) ([]byte, error) {
	if doc.ReceiptNumber == "" {
		return nil, fmt.Errorf("receipt number required")
	}
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, doc.Title, "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("Receipt No: %s", doc.ReceiptNumber), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	for _, field := range doc.Fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, field.Label, "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, field.Value, "", 1, "", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	label := doc.AmountLabel
	if label == "" {
		label = "Amount Paid"
	}
	pdf.CellFormat(45, 9, label, "T", 0, "", false, 0, "")
	pdf.CellFormat(0, 9, doc.AmountValue, "T", 1, "", false, 0, "")

	if doc.FooterNote != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, doc.FooterNote, "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
