package pdf

// PortfolioReport renders the executive summary across every project.
func (g *Generator) PortfolioReport(doc PortfolioDocument) ([]byte, error) {
	d := newDocument()
	d.header(doc.Branding)

	d.banner(colorBlue, 35)
	d.SetFont(fontName, "B", 22)
	d.text(marginX, 55, "REPORTES GENERALES DE OBRA")
	d.SetFont(fontName, "", 10)
	d.text(marginX, 63, "Fecha de emisión: "+formatDate(doc.GeneratedAt)+" | Usuario: "+orDefault(doc.IssuedBy, "N/A"))

	pf := doc.Portfolio
	d.SetY(75)
	d.sectionTitle("Resumen Ejecutivo de Cartera", 16)
	d.table(
		[]string{"Concepto", "Monto Total"},
		[]column{{110, "L"}, {60, "R"}},
		[][]string{
			{"Presupuesto Total Contratado", g.amount(pf.TotalBudget)},
			{"Total Certificado (Bruto)", g.amount(pf.CertGross)},
			{"Total Pagado (Transferencias)", g.amount(pf.PaidTotal)},
			{"Deuda Neta Exigible", g.amount(pf.Debt)},
		},
		colorGrey, 10,
	)

	names := make(map[string]string, len(doc.Contractors))
	for _, c := range doc.Contractors {
		names[c.ID] = c.Name
	}

	d.sectionTitle("Detalle por Proyecto", 16)
	rows := make([][]string, 0, len(pf.Projects))
	for _, s := range pf.Projects {
		rows = append(rows, []string{
			s.Project.FileNumber,
			truncateName(s.Project.Name),
			orDefault(names[s.Project.ContractorID], "N/A"),
			g.amount(s.Project.Budget),
			statusLabel(s.Status),
		})
	}
	d.table(
		[]string{"Expediente", "Obra", "Contratista", "Presupuesto", "Deuda"},
		[]column{{28, "L"}, {52, "L"}, {35, "L"}, {30, "R"}, {25, "L"}},
		rows, colorBlue, 8,
	)

	return d.bytes()
}
