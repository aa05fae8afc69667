package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/nurpe/obras-service/internal/cloudsync"
	"github.com/nurpe/obras-service/internal/excel"
	"github.com/nurpe/obras-service/internal/model"
	"github.com/nurpe/obras-service/internal/store"
)

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write every record to an xlsx backup" }
func (*exportCmd) Usage() string {
	return `obrasctl export [-o <file>]

  Loads contractors, projects, certificates and payments from the remote
  store and writes them to a workbook. The default file name carries
  today's date.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file (defaults to ObraApp_Backup_<date>.xlsx).")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	st, engine, err := env.workspace(ctx)
	if err != nil {
		return fail(err)
	}
	defer engine.Close()

	content, err := excel.Export(st.Snapshot())
	if err != nil {
		return fail(err)
	}
	output := c.output
	if output == "" {
		output = excel.BackupFileName(time.Now())
	}
	if err := os.WriteFile(output, content, 0o644); err != nil {
		return fail(err)
	}
	fmt.Printf("backup written to %s\n", output)
	return subcommands.ExitSuccess
}

type importCmd struct {
	confirm bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace every record with an xlsx backup" }
func (*importCmd) Usage() string {
	return `obrasctl import -confirm <file>

  Reads a workbook written by export and pushes its records to the remote
  store. Records are upserted by id. Nothing is written without -confirm.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.confirm, "confirm", false, "Confirm that the backup replaces the current records.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "expected exactly one backup file")
		return subcommands.ExitUsageError
	}
	file, err := os.Open(f.Arg(0))
	if err != nil {
		return fail(err)
	}
	defer file.Close()

	state, err := excel.Import(file)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("backup holds %d contractors, %d projects, %d certificates, %d payments\n",
		len(state.Contractors), len(state.Projects), len(state.Certificates), len(state.Payments))
	if !c.confirm {
		fmt.Fprintln(os.Stderr, "re-run with -confirm to apply it")
		return subcommands.ExitFailure
	}

	env := envFrom(args)
	st, engine, err := env.workspace(ctx)
	if err != nil {
		return fail(err)
	}
	defer engine.Close()

	st.Replace(state, store.OriginImport)
	report, ok := engine.Flush(ctx)
	if !ok {
		return fail(errors.New("nothing was scheduled for push"))
	}
	for _, kind := range model.Kinds {
		fmt.Printf("%-13s %s\n", kind, report.Outcomes[kind])
	}
	if report.Err != nil {
		return fail(report.Err)
	}
	if engine.Status() != cloudsync.StatusConnected {
		return fail(fmt.Errorf("sync status %s", engine.Status()))
	}
	return subcommands.ExitSuccess
}
