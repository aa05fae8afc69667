package pdf

import (
	"fmt"
)

// ProjectReport renders the single-project sheet: banner, financial position,
// certificate history and, when there are any, payments.
func (g *Generator) ProjectReport(doc ProjectDocument) ([]byte, error) {
	d := newDocument()
	d.header(doc.Branding)

	s := doc.Summary
	p := s.Project

	d.banner(colorSlate, 45)
	d.SetFont(fontName, "B", 18)
	d.text(marginX, 52, truncateName(p.Name))
	d.SetFont(fontName, "", 10)
	d.text(marginX, 62, "EXPEDIENTE: "+p.FileNumber)
	d.text(marginX, 68, "CONTRATISTA: "+orDefault(doc.Contractor.Name, "S/D"))
	d.text(marginX, 74, "Fecha de Reporte: "+formatDate(doc.GeneratedAt))

	d.SetY(85)
	d.sectionTitle("Estado de Situación Financiera", 14)
	summary := [][]string{
		{"Presupuesto Original", g.amount(p.Budget)},
		{"Anticipo Otorgado", g.amount(p.AdvanceAmount)},
		{"Monto Certificado (Bruto)", g.amount(s.CertGross)},
		{"Amortización de Anticipo", g.negative(s.AmortTotal)},
		{"Neto Pagado a la Fecha", g.amount(s.PaidTotal)},
		{"DEUDA PENDIENTE", g.amount(s.Debt)},
		{"Estado", statusLabel(s.Status)},
	}
	d.table(nil, []column{{110, "L"}, {60, "R"}}, summary, colorGrey, 10)

	d.sectionTitle("Historial de Certificaciones", 14)
	certs := make([][]string, 0, len(doc.Certificates))
	for _, c := range doc.Certificates {
		certs = append(certs, []string{
			c.Period,
			fmt.Sprintf("%g%%", c.PhysicalProgress),
			g.amount(c.FinancialAmount),
			g.negative(c.AdvanceAmortization),
			g.amount(c.Net()),
		})
	}
	d.table(
		[]string{"Periodo", "Avance %", "Bruto", "Amortización", "Neto"},
		[]column{{30, "L"}, {25, "R"}, {40, "R"}, {40, "R"}, {35, "R"}},
		certs, colorBlue, 8,
	)

	if len(doc.Payments) > 0 {
		d.sectionTitle("Registro de Pagos Efectuados", 14)
		payments := make([][]string, 0, len(doc.Payments))
		for _, pay := range doc.Payments {
			payments = append(payments, []string{formatDate(pay.Date), pay.Reference, g.amount(pay.Amount)})
		}
		d.table(
			[]string{"Fecha", "Referencia", "Monto Pagado"},
			[]column{{35, "L"}, {85, "L"}, {50, "R"}},
			payments, colorGreen, 8,
		)
	}

	return d.bytes()
}
