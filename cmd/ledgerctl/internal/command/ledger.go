package command

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/database"
	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending database migrations" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate

  Applies every pending schema migration.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	db, err := envFrom(args).DB()
	if err != nil {
		return fail("Error connecting to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		return fail("Error migrating database: %v", err)
	}

	fmt.Println("Database is up to date")

	return subcommands.ExitSuccess
}

type importCmd struct {
	format string
	dryRun bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import historical movements from spreadsheet exports" }
func (*importCmd) Usage() string {
	return `ledgerctl import [-format <format>] [-dry-run] <file>...

  Imports every file in order. Each period is committed on its own; movements
  already in the ledger are skipped, so a file can be imported again safely.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", string(importer.FormatAuto), "Source layout: auto, tesouraria or cgd.")
	f.BoolVar(&c.dryRun, "dry-run", false, "Report what would be imported without writing anything.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return usage(f, "At least one file is required")
	}

	a, err := envFrom(args).App()
	if err != nil {
		return fail("Error starting: %v", err)
	}

	status := subcommands.ExitSuccess

	for _, name := range f.Args() {
		file, err := os.Open(name)
		if err != nil {
			return fail("Error opening %q: %v", name, err)
		}

		report, err := a.Import.Import(ctx, importer.Format(c.format), file, c.dryRun)
		file.Close()

		if report != nil {
			printMarkdown(fmt.Sprintf("`%s`\n\n", name) + importMarkdown(report, c.dryRun, a.Format))
		}

		if err != nil {
			return fail("Error importing %q: %v", name, err)
		}

		if len(report.Failed()) > 0 {
			status = subcommands.ExitFailure
		}
	}

	return status
}

type aggregateCmd struct {
	period   string
	expected string
}

func (*aggregateCmd) Name() string     { return "aggregate" }
func (*aggregateCmd) Synopsis() string { return "compute the live figures of a period" }
func (*aggregateCmd) Usage() string {
	return `ledgerctl aggregate -period <YYYY-MM> [-expected <amount>]

  Computes the opening balance, income, expense and closing balance of the
  period from the current ledger. With -expected the closing balance is
  compared against the given amount.
`
}

func (c *aggregateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "Period as YYYY-MM.")
	f.StringVar(&c.expected, "expected", "", "Closing balance stated by an external source.")
}

func (c *aggregateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	key, err := period.ParseKey(c.period)
	if err != nil {
		return usage(f, "Error parsing period: %v", err)
	}

	var expected *decimal.Decimal

	if c.expected != "" {
		d, err := decimal.NewFromString(c.expected)
		if err != nil {
			return usage(f, "Error parsing expected balance: %v", err)
		}

		expected = &d
	}

	a, err := envFrom(args).App()
	if err != nil {
		return fail("Error starting: %v", err)
	}

	figures, err := a.Aggregator.Aggregate(ctx, key)
	if err != nil {
		return fail("Error aggregating %s: %v", key, err)
	}

	md := figuresMarkdown("Ledger "+key.String(), figures, a.Format)

	if expected != nil {
		if w := a.Validator.Validate(figures.Closing, *expected); w != nil {
			md += "\n> **Warning:** " + warningText(w, a.Format) + "\n"
		} else {
			md += "\nClosing balance matches the expected amount.\n"
		}
	}

	printMarkdown(md)

	return subcommands.ExitSuccess
}
