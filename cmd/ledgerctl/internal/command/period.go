package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/google/subcommands"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/auth"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

// currentUser names the operator in audit entries when -user is not given.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}

	return auth.Local.Name
}

type periodsCmd struct {
	year int
}

func (*periodsCmd) Name() string     { return "periods" }
func (*periodsCmd) Synopsis() string { return "list the closed periods of a year" }
func (*periodsCmd) Usage() string {
	return `ledgerctl periods [-year <year>]

  Lists the closed periods of the year with their frozen figures.
`
}

func (c *periodsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", time.Now().Year(), "Year to list.")
}

func (c *periodsCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := envFrom(args).App()
	if err != nil {
		return fail("Error starting: %v", err)
	}

	periods, err := a.Periods.List(ctx, c.year)
	if err != nil {
		return fail("Error listing periods: %v", err)
	}

	printMarkdown(periodsMarkdown(c.year, periods, a.Format))

	return subcommands.ExitSuccess
}

type closeCmd struct {
	period string
	notes  string
	user   string
}

func (*closeCmd) Name() string     { return "close" }
func (*closeCmd) Synopsis() string { return "close a period and freeze its figures" }
func (*closeCmd) Usage() string {
	return `ledgerctl close -period <YYYY-MM> [-notes <text>] [-user <name>]

  Computes the figures of the period and stores them as its closing
  snapshot. No movement dated inside the period can change afterwards.
`
}

func (c *closeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "Period as YYYY-MM.")
	f.StringVar(&c.notes, "notes", "", "Notes kept with the snapshot.")
	f.StringVar(&c.user, "user", currentUser(), "User recorded as closing the period.")
}

func (c *closeCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	key, err := period.ParseKey(c.period)
	if err != nil {
		return usage(f, "Error parsing period: %v", err)
	}

	a, err := envFrom(args).App()
	if err != nil {
		return fail("Error starting: %v", err)
	}

	p, err := a.Periods.Close(ctx, key, c.user, c.notes)
	if err != nil {
		if errors.Is(err, period.ErrAlreadyClosed) {
			return fail("Period %s is already closed", key)
		}

		return fail("Error closing %s: %v", key, err)
	}

	printMarkdown(figuresMarkdown("Closed "+key.String(), *p.Figures, a.Format))

	return subcommands.ExitSuccess
}

type reopenCmd struct {
	period string
	reason string
	user   string
}

func (*reopenCmd) Name() string     { return "reopen" }
func (*reopenCmd) Synopsis() string { return "reopen a closed period" }
func (*reopenCmd) Usage() string {
	return `ledgerctl reopen -period <YYYY-MM> -reason <text> [-user <name>]

  Discards the closing snapshot so the period's movements can be corrected.
  The reason and the discarded figures are kept in the audit log.
`
}

func (c *reopenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "Period as YYYY-MM.")
	f.StringVar(&c.reason, "reason", "", "Why the period is reopened (required).")
	f.StringVar(&c.user, "user", currentUser(), "Administrator reopening the period.")
}

func (c *reopenCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	key, err := period.ParseKey(c.period)
	if err != nil {
		return usage(f, "Error parsing period: %v", err)
	}

	a, err := envFrom(args).App()
	if err != nil {
		return fail("Error starting: %v", err)
	}

	if _, err := a.Periods.Reopen(ctx, key, c.reason, c.user); err != nil {
		if errors.Is(err, period.ErrInvalidReason) {
			return usage(f, "A reason is required")
		}

		return fail("Error reopening %s: %v", key, err)
	}

	fmt.Printf("Period %s reopened\n", key)

	return subcommands.ExitSuccess
}

type tokenCmd struct {
	user string
	role string
	ttl  time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an API bearer token" }
func (*tokenCmd) Usage() string {
	return `ledgerctl token -user <name> [-role <role>] [-ttl <duration>]

  Signs a token with AUTH_SECRET for use as "Authorization: Bearer <token>".
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User the token authenticates.")
	f.StringVar(&c.role, "role", "", "Role granted; the admin role may reopen periods.")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "Token lifetime.")
}

func (c *tokenCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		return usage(f, "A user is required")
	}

	cfg, err := envFrom(args).Config()
	if err != nil {
		return fail("Error loading config: %v", err)
	}

	if cfg.Auth.Secret == "" {
		return fail("AUTH_SECRET is not set")
	}

	token, err := auth.Issue([]byte(cfg.Auth.Secret), c.user, c.role, c.ttl)
	if err != nil {
		return fail("Error issuing token: %v", err)
	}

	fmt.Fprintln(os.Stdout, token)

	return subcommands.ExitSuccess
}
