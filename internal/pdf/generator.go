package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/obras-service/internal/currency"
	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/reconcile"
)

const (
	DefaultLegend = "SISTEMA DE CONTROL DE OBRA PÚBLICA"

	marginX     = 20.0
	pageWidth   = 210.0
	rightMargin = pageWidth - marginX
	fontName    = "Helvetica"
	maxNameLen  = 50
)

type rgb [3]int

var (
	colorSlate   = rgb{30, 41, 59}
	colorBlue    = rgb{59, 130, 246}
	colorGreen   = rgb{16, 185, 129}
	colorGrey    = rgb{71, 85, 105}
	colorText    = rgb{44, 62, 80}
	colorLegend  = rgb{150, 150, 150}
	colorStriped = rgb{245, 247, 250}
)

// Branding is the per-user header customization.
type Branding struct {
	Logo   string
	Legend string
}

type ProjectDocument struct {
	Branding     Branding
	Summary      reconcile.ProjectSummary
	Contractor   model.Contractor
	Certificates []model.Certificate
	Payments     []model.Payment
	GeneratedAt  time.Time
}

type PortfolioDocument struct {
	Branding    Branding
	IssuedBy    string
	Portfolio   reconcile.Portfolio
	Contractors []model.Contractor
	GeneratedAt time.Time
}

type Generator struct {
	money currency.Formatter
}

func NewGenerator(currencyCode string) *Generator {
	return &Generator{money: currency.Formatter{Code: currencyCode}}
}

type document struct {
	*gofpdf.Fpdf
	tr func(string) string
}

func newDocument() *document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginX, 15, marginX)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return &document{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *document) fill(c rgb)      { d.SetFillColor(c[0], c[1], c[2]) }
func (d *document) textColor(c rgb) { d.SetTextColor(c[0], c[1], c[2]) }

func (d *document) text(x, y float64, s string) {
	d.Text(x, y, d.tr(s))
}

// header draws the logo box at the top left and the legend at the top right.
func (d *document) header(b Branding) {
	legend := strings.TrimSpace(b.Legend)
	if legend == "" {
		legend = DefaultLegend
	}
	d.SetFont(fontName, "", 8)
	d.textColor(colorLegend)
	d.SetXY(marginX, 12)
	d.CellFormat(rightMargin-marginX, 6, d.tr(legend), "", 0, "R", false, 0, "")

	drawLogo(d, b.Logo)
	d.textColor(colorText)
}

func (d *document) banner(c rgb, height float64) {
	d.fill(c)
	d.Rect(0, 35, pageWidth, height, "F")
	d.SetTextColor(255, 255, 255)
}

func (d *document) sectionTitle(title string, size float64) {
	d.Ln(8)
	d.SetFont(fontName, "B", size)
	d.textColor(colorText)
	d.CellFormat(0, 8, d.tr(title), "", 1, "L", false, 0, "")
	d.Ln(2)
}

type column struct {
	width float64
	align string
}

// table draws a header row filled with headColor (skipped when head is nil)
// followed by body rows with alternating shading.
func (d *document) table(head []string, cols []column, body [][]string, headColor rgb, fontSize float64) {
	if head != nil {
		d.SetFont(fontName, "B", fontSize)
		d.fill(headColor)
		d.SetTextColor(255, 255, 255)
		for i, h := range head {
			d.CellFormat(cols[i].width, 8, d.tr(h), "1", 0, cols[i].align, true, 0, "")
		}
		d.Ln(-1)
	}

	d.SetFont(fontName, "", fontSize)
	d.textColor(colorText)
	d.fill(colorStriped)
	for r, row := range body {
		for i, cell := range row {
			d.CellFormat(cols[i].width, 7, d.tr(cell), "1", 0, cols[i].align, r%2 == 1, 0, "")
		}
		d.Ln(-1)
	}
}

func (g *Generator) amount(v float64) string {
	return g.money.Format(v)
}

func (g *Generator) negative(v float64) string {
	return "-" + g.money.Format(v)
}

// truncateName shortens names longer than 50 characters to 47 plus an ellipsis.
func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameLen {
		return name
	}
	return string(runes[:maxNameLen-3]) + "..."
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func statusLabel(s reconcile.DebtStatus) string {
	switch s {
	case reconcile.DebtSettled:
		return "Saldada"
	case reconcile.DebtPending:
		return "Pendiente"
	case reconcile.DebtOverpaid:
		return "Pago en exceso"
	default:
		return string(s)
	}
}

func ProjectFileName(fileNumber string) string {
	return fmt.Sprintf("Ficha_Obra_%s.pdf", strings.ReplaceAll(fileNumber, "/", "_"))
}

func PortfolioFileName(now time.Time) string {
	return fmt.Sprintf("Reporte_General_Obras_%s.pdf", now.Format("02-01-2006"))
}
