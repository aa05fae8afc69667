package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/nurpe/obras-service/internal/currency"
	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/pdf"
	"github.com/nurpe/obras-service/internal/reconcile"
)

type summaryCmd struct{}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print certified, paid and owed amounts per project" }
func (*summaryCmd) Usage() string {
	return `obrasctl summary

  Prints one line per project followed by portfolio totals.
`
}

func (*summaryCmd) SetFlags(*flag.FlagSet) {}

func (*summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	st, engine, err := env.workspace(ctx)
	if err != nil {
		return fail(err)
	}
	defer engine.Close()

	money := currency.Formatter{Code: env.cfg.Report.Currency}
	pf := reconcile.SummarizePortfolio(st.Snapshot())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Expediente\tObra\tAvance\tCertificado\tAmortizado\tPagado\tDeuda\tEstado\t")
	for _, s := range pf.Projects {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Project.FileNumber, s.Project.Name, s.Progress,
			money.Format(s.CertGross), money.Format(s.AmortTotal), money.Format(s.PaidTotal),
			money.Format(s.Debt), s.Status)
	}
	fmt.Fprintf(w, "Total\t%d obras\t\t%s\t%s\t%s\t%s\t%d pendientes\t\n",
		len(pf.Projects), money.Format(pf.CertGross), money.Format(pf.AmortTotal),
		money.Format(pf.PaidTotal), money.Format(pf.Debt), pf.Pending)
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type reportCmd struct {
	project string
	user    string
	output  string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "render the portfolio or a project report as pdf" }
func (*reportCmd) Usage() string {
	return `obrasctl report [-project <id>] [-user <profile id>] [-o <file>]

  Without -project renders the portfolio report. -user picks the profile
  whose logo, legend and name go in the header.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project id; empty renders the portfolio report.")
	f.StringVar(&c.user, "user", "", "Profile id used for the report header.")
	f.StringVar(&c.output, "o", "", "Output file (defaults to the conventional report name).")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	st, engine, err := env.workspace(ctx)
	if err != nil {
		return fail(err)
	}
	defer engine.Close()

	profile := model.Profile{}
	if c.user != "" {
		p, err := env.backend.Profiles.Get(ctx, c.user)
		if err != nil {
			return fail(fmt.Errorf("load profile: %w", err))
		}
		profile = *p
	}
	branding := pdf.Branding{Logo: profile.ReportLogo, Legend: profile.ReportLegend}
	if branding.Legend == "" {
		branding.Legend = env.cfg.Report.Legend
	}

	gen := pdf.NewGenerator(env.cfg.Report.Currency)
	state := st.Snapshot()
	now := time.Now()

	var (
		content []byte
		name    string
	)
	if c.project == "" {
		content, err = gen.PortfolioReport(pdf.PortfolioDocument{
			Branding:    branding,
			IssuedBy:    profile.FullName,
			Portfolio:   reconcile.SummarizePortfolio(state),
			Contractors: state.Contractors,
			GeneratedAt: now,
		})
		name = pdf.PortfolioFileName(now)
	} else {
		summary, ok := reconcile.SummarizeProjectByID(state, c.project)
		if !ok {
			return fail(fmt.Errorf("project %s not found", c.project))
		}
		contractor, _ := state.FindContractor(summary.Project.ContractorID)
		content, err = gen.ProjectReport(pdf.ProjectDocument{
			Branding:     branding,
			Summary:      summary,
			Contractor:   contractor,
			Certificates: state.CertificatesFor(c.project),
			Payments:     state.PaymentsFor(c.project),
			GeneratedAt:  now,
		})
		name = pdf.ProjectFileName(summary.Project.FileNumber)
	}
	if err != nil {
		return fail(err)
	}
	if c.output != "" {
		name = c.output
	}
	if err := os.WriteFile(name, content, 0o644); err != nil {
		return fail(err)
	}
	fmt.Printf("report written to %s\n", name)
	return subcommands.ExitSuccess
}
