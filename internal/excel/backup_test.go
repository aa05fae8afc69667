package excel

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/obras-service/internal/model"
)

func sampleState() model.State {
	state := model.NewState()
	state.Contractors = append(state.Contractors, model.Contractor{ID: "c1", Name: "Constructora Sur", TaxID: "30-71234567-8", Contact: "obras@sur.com.ar"})
	state.Projects = append(state.Projects, model.Project{
		ID: "p1", Name: "Escuela N° 12", FileNumber: "EX-2024/117", Budget: 1500000,
		AdvanceAmount: 150000, AdvanceRecoveryRate: 10, ContractorID: "c1",
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Status: model.ProjectStatusPaused,
	})
	state.Certificates = append(state.Certificates, model.Certificate{
		ID: "k1", ProjectID: "p1", Period: "2024-04", PhysicalProgress: 12.5,
		FinancialAmount: 200000.75, AdvanceAmortization: 20000.08,
		Timestamp: time.Date(2024, 5, 2, 14, 30, 0, 123000000, time.UTC),
	})
	state.Payments = append(state.Payments, model.Payment{
		ID: "y1", ProjectID: "p1", Amount: 90000, Date: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), Reference: "OP 55/24",
	})
	return state
}

func TestExportImport(t *testing.T) {
	want := sampleState()
	data, err := Export(want)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sheets := file.GetSheetList()
	if strings.Join(sheets, ",") != "Contratistas,Obras,Certificados,Pagos" {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	header, _ := file.GetRows(SheetProjects)
	if strings.Join(header[0], ",") != strings.Join(projectHeaders, ",") {
		t.Fatalf("unexpected header %v", header[0])
	}
	file.Close()

	got, err := Import(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if len(got.Contractors) != 1 || got.Contractors[0] != want.Contractors[0] {
		t.Fatalf("contractors = %+v", got.Contractors)
	}

	p, wp := got.Projects[0], want.Projects[0]
	if !p.StartDate.Equal(wp.StartDate) {
		t.Fatalf("start date = %v", p.StartDate)
	}
	p.StartDate, wp.StartDate = time.Time{}, time.Time{}
	if p != wp {
		t.Fatalf("project = %+v, want %+v", p, wp)
	}

	c, wc := got.Certificates[0], want.Certificates[0]
	if !c.Timestamp.Equal(wc.Timestamp) {
		t.Fatalf("timestamp = %v", c.Timestamp)
	}
	c.Timestamp, wc.Timestamp = time.Time{}, time.Time{}
	if c != wc {
		t.Fatalf("certificate = %+v, want %+v", c, wc)
	}

	y, wy := got.Payments[0], want.Payments[0]
	if !y.Date.Equal(wy.Date) || y.Amount != wy.Amount || y.Reference != wy.Reference {
		t.Fatalf("payment = %+v", y)
	}
}

func TestImportMissingSheetYieldsEmptyCollection(t *testing.T) {
	file := excelize.NewFile()
	_ = file.SetSheetName("Sheet1", SheetContractors)
	_ = file.SetSheetRow(SheetContractors, "A1", &[]interface{}{"id", "name", "taxId", "contact"})
	_ = file.SetSheetRow(SheetContractors, "A2", &[]interface{}{"c1", "Vial Norte", "30-1", ""})
	_, _ = file.NewSheet(SheetProjects)
	_ = file.SetSheetRow(SheetProjects, "A1", &[]interface{}{"id", "name", "fileNumber", "budget", "contractorId"})
	_ = file.SetSheetRow(SheetProjects, "A2", &[]interface{}{"p1", "Ruta 5", "EX-1", 1000, "c1"})
	_, _ = file.NewSheet(SheetCertificates)
	buf, err := file.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Import(buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got.Payments == nil || len(got.Payments) != 0 {
		t.Fatalf("payments = %#v", got.Payments)
	}
	if len(got.Certificates) != 0 {
		t.Fatalf("certificates = %+v", got.Certificates)
	}
	if len(got.Projects) != 1 || got.Projects[0].Budget != 1000 || got.Projects[0].Status != model.ProjectStatusActive {
		t.Fatalf("projects = %+v", got.Projects)
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	if _, err := Import(strings.NewReader("not a workbook")); !errors.Is(err, ErrMalformedWorkbook) {
		t.Fatalf("expected ErrMalformedWorkbook, got %v", err)
	}

	file := excelize.NewFile()
	_ = file.SetSheetName("Sheet1", SheetPayments)
	_ = file.SetSheetRow(SheetPayments, "A1", &[]interface{}{"id", "projectId", "amount", "date"})
	_ = file.SetSheetRow(SheetPayments, "A2", &[]interface{}{"y1", "p1", "mucho", "2024-01-01"})
	buf, _ := file.WriteToBuffer()

	_, err := Import(buf)
	if !errors.Is(err, ErrMalformedWorkbook) || !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("expected malformed row error, got %v", err)
	}
}

func TestImportRejectsBlankRequiredCells(t *testing.T) {
	cases := []struct {
		name   string
		sheet  string
		header []interface{}
		row    []interface{}
		column string
	}{
		{"certificate timestamp", SheetCertificates,
			[]interface{}{"id", "projectId", "period", "financialAmount", "timestamp"},
			[]interface{}{"k1", "p1", "2024-04", 1000, ""}, "timestamp"},
		{"payment date", SheetPayments,
			[]interface{}{"id", "projectId", "amount", "date"},
			[]interface{}{"y1", "p1", 500, ""}, "date"},
		{"certificate project", SheetCertificates,
			[]interface{}{"id", "projectId", "period", "timestamp"},
			[]interface{}{"k1", "", "2024-04", "2024-05-02T14:30:00Z"}, "projectId"},
		{"payment project", SheetPayments,
			[]interface{}{"id", "projectId", "amount", "date"},
			[]interface{}{"y1", " ", 500, "2024-05-20"}, "projectId"},
		{"project contractor", SheetProjects,
			[]interface{}{"id", "name", "fileNumber", "contractorId"},
			[]interface{}{"p1", "Ruta 5", "EX-1", ""}, "contractorId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			file := excelize.NewFile()
			_ = file.SetSheetName("Sheet1", tc.sheet)
			_ = file.SetSheetRow(tc.sheet, "A1", &tc.header)
			_ = file.SetSheetRow(tc.sheet, "A2", &tc.row)
			buf, err := file.WriteToBuffer()
			if err != nil {
				t.Fatalf("write: %v", err)
			}

			_, err = Import(buf)
			if !errors.Is(err, ErrMalformedWorkbook) || !strings.Contains(err.Error(), tc.column) {
				t.Fatalf("expected malformed %s error, got %v", tc.column, err)
			}
		})
	}
}

func TestBackupFileName(t *testing.T) {
	got := BackupFileName(time.Date(2024, 7, 9, 18, 0, 0, 0, time.UTC))
	if got != "ObraApp_Backup_2024-07-09.xlsx" {
		t.Fatalf("got %q", got)
	}
}
