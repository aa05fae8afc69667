package excel

import (
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/obras-service/internal/model"
)

const (
	SheetContractors  = "Contratistas"
	SheetProjects     = "Obras"
	SheetCertificates = "Certificados"
	SheetPayments     = "Pagos"
)

var ErrMalformedWorkbook = errors.New("malformed backup workbook")

var (
	contractorHeaders  = []string{"id", "name", "taxId", "contact"}
	projectHeaders     = []string{"id", "name", "fileNumber", "budget", "advanceAmount", "advanceRecoveryRate", "contractorId", "startDate", "status"}
	certificateHeaders = []string{"id", "projectId", "period", "physicalProgress", "financialAmount", "advanceAmortization", "timestamp"}
	paymentHeaders     = []string{"id", "projectId", "amount", "date", "reference"}
)

func BackupFileName(now time.Time) string {
	return fmt.Sprintf("ObraApp_Backup_%s.xlsx", now.Format("2006-01-02"))
}

// Export writes one sheet per collection with a header row of field names.
func Export(state model.State) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SheetContractors); err != nil {
		return nil, err
	}
	for _, sheet := range []string{SheetProjects, SheetCertificates, SheetPayments} {
		if _, err := file.NewSheet(sheet); err != nil {
			return nil, err
		}
	}

	contractors := make([][]interface{}, 0, len(state.Contractors))
	for _, c := range state.Contractors {
		contractors = append(contractors, []interface{}{c.ID, c.Name, c.TaxID, c.Contact})
	}
	projects := make([][]interface{}, 0, len(state.Projects))
	for _, p := range state.Projects {
		projects = append(projects, []interface{}{
			p.ID, p.Name, p.FileNumber, p.Budget, p.AdvanceAmount, p.AdvanceRecoveryRate,
			p.ContractorID, formatDate(p.StartDate), string(p.Status),
		})
	}
	certificates := make([][]interface{}, 0, len(state.Certificates))
	for _, c := range state.Certificates {
		certificates = append(certificates, []interface{}{
			c.ID, c.ProjectID, c.Period, c.PhysicalProgress, c.FinancialAmount,
			c.AdvanceAmortization, formatTimestamp(c.Timestamp),
		})
	}
	payments := make([][]interface{}, 0, len(state.Payments))
	for _, p := range state.Payments {
		payments = append(payments, []interface{}{p.ID, p.ProjectID, p.Amount, formatDate(p.Date), p.Reference})
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]interface{}
	}{
		{SheetContractors, contractorHeaders, contractors},
		{SheetProjects, projectHeaders, projects},
		{SheetCertificates, certificateHeaders, certificates},
		{SheetPayments, paymentHeaders, payments},
	}
	for _, s := range sheets {
		if err := writeSheet(file, s.name, s.headers, s.rows); err != nil {
			return nil, fmt.Errorf("write %s: %w", s.name, err)
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(file *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	return file.SetColWidth(sheet, "A", last, 18)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
