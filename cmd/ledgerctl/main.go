package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/tesouraria/cmd/ledgerctl/internal/command"
)

func main() {
	_ = godotenv.Load()

	name := path.Base(os.Args[0])

	// Completion requests from the shell exit here.
	command.Completion().Complete(name)

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	command.Register(commander)

	flag.Parse()

	env := command.NewEnv()
	defer env.Close()

	os.Exit(int(commander.Execute(context.Background(), env)))
}
