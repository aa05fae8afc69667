package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&exportCmd{}, "backup")
	commander.Register(&importCmd{}, "backup")
	commander.Register(&summaryCmd{}, "reports")
	commander.Register(&reportCmd{}, "reports")

	flag.Parse()

	env := &environment{}
	status := commander.Execute(context.Background(), env)
	env.close()
	os.Exit(int(status))
}
