package export

import (
	_ "embed"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
)

// DejaVu covers Latin, Cyrillic and Greek detail names; the PDF core fonts
// only cover cp1252.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	dejaVuRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	dejaVuBold []byte
)

const pdfFont = "DejaVu"

type pieceColor struct {
	R, G, B int
}

var pieceColors = []pieceColor{
	{R: 76, G: 175, B: 80},
	{R: 33, G: 150, B: 243},
	{R: 255, G: 152, B: 0},
	{R: 156, G: 39, B: 176},
	{R: 0, G: 188, B: 212},
	{R: 244, G: 67, B: 54},
}

// Page layout constants (A4 portrait in mm).
const (
	pdfPageWidth  = 210.0
	pdfPageHeight = 297.0
	pdfMargin     = 15.0
	pdfBarHeight  = 8.0
	pdfRowGap     = 6.0
)

// WritePDF renders plan as a one-document report: totals first, then each
// pattern group with a bar showing how one tube is cut.
func WritePDF(w io.Writer, plan cutting.CuttingPlan) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(pdfFont, "", dejaVuRegular)
	pdf.AddUTF8FontFromBytes(pdfFont, "B", dejaVuBold)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()

	contentWidth := pdfPageWidth - 2*pdfMargin

	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(contentWidth, 10, "Cutting plan", "", 1, "L", false, 0, "")

	pdf.SetFont(pdfFont, "", 10)
	stats := fmt.Sprintf("Stock %g | Tubes needed: %d | Waste: %g | Efficiency: %.1f%%",
		plan.Capacity, plan.TotalUnitsUsed, plan.TotalWaste, efficiencyPercent(plan))
	pdf.CellFormat(contentWidth, 6, stats, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	colorOf := make(map[string]pieceColor)
	for _, g := range plan.Groups {
		if pdf.GetY()+pdfBarHeight+2*pdfRowGap > pdfPageHeight-pdfMargin {
			pdf.AddPage()
		}
		rep := g.Units[0]

		pdf.SetFont(pdfFont, "B", 11)
		pdf.CellFormat(contentWidth, 6, fmt.Sprintf("%s x%d", g.Label, g.UnitCount), "", 1, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 9)
		pdf.CellFormat(contentWidth, 5, fmt.Sprintf("%s | waste per tube %g", describePieces(rep), rep.RemainingCapacity), "", 1, "L", false, 0, "")

		drawBar(pdf, rep, contentWidth, colorOf)
		pdf.Ln(pdfBarHeight + pdfRowGap)
	}

	if len(plan.LeftoverDetails) > 0 {
		pdf.Ln(2)
		pdf.SetFont(pdfFont, "B", 11)
		pdf.SetTextColor(200, 0, 0)
		pdf.CellFormat(contentWidth, 6, "Not placed", "", 1, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 9)
		for _, d := range plan.LeftoverDetails {
			pdf.CellFormat(contentWidth, 5, fmt.Sprintf("%s: %g x %d", d.Name, d.Length, d.Amount), "", 1, "L", false, 0, "")
		}
		pdf.SetTextColor(0, 0, 0)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// drawBar draws one tube scaled to width, a coloured block per piece and a
// grey block for the waste.
func drawBar(pdf *fpdf.Fpdf, unit cutting.StockUnit, width float64, colorOf map[string]pieceColor) {
	if !cutting.ValidLength(unit.Capacity) {
		return
	}
	scale := width / unit.Capacity
	x, y := pdfMargin, pdf.GetY()

	pdf.SetDrawColor(60, 60, 60)
	for _, p := range unit.PlacedPieces {
		c, ok := colorOf[p.Name]
		if !ok {
			c = pieceColors[len(colorOf)%len(pieceColors)]
			colorOf[p.Name] = c
		}
		pdf.SetFillColor(c.R, c.G, c.B)
		pdf.Rect(x, y, p.Length*scale, pdfBarHeight, "FD")
		x += p.Length * scale
	}
	if unit.RemainingCapacity > 0 {
		pdf.SetFillColor(220, 220, 220)
		pdf.Rect(x, y, unit.RemainingCapacity*scale, pdfBarHeight, "FD")
	}
}
