// Package command implements the ledgerctl subcommands.
package command

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/MrJamesThe3rd/tesouraria/internal/app"
	"github.com/MrJamesThe3rd/tesouraria/internal/config"
	"github.com/MrJamesThe3rd/tesouraria/internal/database"
	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
)

// Register adds every subcommand to c.
func Register(c *subcommands.Commander) {
	c.Register(&migrateCmd{}, "database")

	c.Register(&importCmd{}, "ledger")
	c.Register(&aggregateCmd{}, "ledger")

	c.Register(&periodsCmd{}, "periods")
	c.Register(&closeCmd{}, "periods")
	c.Register(&reopenCmd{}, "periods")

	c.Register(&tokenCmd{}, "access")
}

// Completion describes the command line for shell completion.
func Completion() *complete.Command {
	return &complete.Command{
		Sub: map[string]*complete.Command{
			"migrate": {},
			"import": {
				Flags: map[string]complete.Predictor{
					"format":  predict.Set{string(importer.FormatAuto), string(importer.FormatTesouraria), string(importer.FormatCGD)},
					"dry-run": predict.Nothing,
				},
				Args: predict.Files("*.csv"),
			},
			"aggregate": {Flags: map[string]complete.Predictor{"period": predict.Something, "expected": predict.Something}},
			"periods":   {Flags: map[string]complete.Predictor{"year": predict.Something}},
			"close":     {Flags: map[string]complete.Predictor{"period": predict.Something, "notes": predict.Something, "user": predict.Something}},
			"reopen":    {Flags: map[string]complete.Predictor{"period": predict.Something, "reason": predict.Something, "user": predict.Something}},
			"token":     {Flags: map[string]complete.Predictor{"user": predict.Something, "role": predict.Set{"admin", "member"}, "ttl": predict.Something}},
			"help":      {},
			"flags":     {},
		},
	}
}

// Env opens the configuration and the database on first use.
type Env struct {
	cfg *config.Config
	db  *sql.DB
	app *app.App
}

func NewEnv() *Env {
	return &Env{}
}

func (e *Env) Config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	e.cfg = cfg

	return cfg, nil
}

func (e *Env) DB() (*sql.DB, error) {
	if e.db != nil {
		return e.db, nil
	}

	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	e.db = db

	return db, nil
}

func (e *Env) App() (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}

	db, err := e.DB()
	if err != nil {
		return nil, err
	}

	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}

	a, err := app.New(db, cfg)
	if err != nil {
		return nil, err
	}

	e.app = a

	return a, nil
}

// Close waits for pending audit writes and closes the database.
func (e *Env) Close() {
	if e.app != nil {
		e.app.Audit.Wait()
	}

	if e.db != nil {
		_ = e.db.Close()
	}
}

func envFrom(args []interface{}) *Env {
	if len(args) > 0 {
		if e, ok := args[0].(*Env); ok {
			return e
		}
	}

	return NewEnv()
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}

func usage(f *flag.FlagSet, format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	f.Usage()

	return subcommands.ExitUsageError
}

// printMarkdown renders md for the terminal, or prints it raw when it cannot.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Print(md)
		return
	}

	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}

	fmt.Print(out)
}
