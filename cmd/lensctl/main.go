// main.go - Admin control tool for leadlens
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"leadlens/internal"
	"leadlens/internal/analytics"
	"leadlens/internal/config"
	lenshttp "leadlens/internal/http"
	"leadlens/internal/seeder"
	"leadlens/internal/store"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&SummaryCommand{out: os.Stdout},
	&LeadCommand{name: "archive-lead", archived: true},
	&LeadCommand{name: "restore-lead", archived: false},
	&ProcessCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if _, isHelp := cmd.(*HelpCommand); !isHelp {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Printf("Warning: Failed to initialize app: %v", err)
			log.Println("Proceeding with limited functionality...")
		}
	}

	err := cmd.Execute(ctx, app, args)

	if app != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		if serr := app.Shutdown(shutdownCtx); serr != nil {
			log.Printf("Warning: Cleanup error: %v", serr)
		}
		cancelShutdown()
	}

	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
	log.Printf("Command %s completed successfully", cmd.Name())
}

var errNoApp = errors.New("app initialization failed, cannot connect to database")

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return errNoApp
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := app.Store.Migrate(ctx); err != nil {
		return fmt.Errorf("analytics store migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SummaryCommand prints the dashboard summary as JSON
type SummaryCommand struct {
	out io.Writer
}

func (c *SummaryCommand) Name() string { return "summary" }
func (c *SummaryCommand) Description() string {
	return "Prints the analytics summary as JSON: summary [days]"
}

func (c *SummaryCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return errNoApp
	}

	days := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("days must be a positive integer, got %q", args[0])
		}
		days = n
	}

	agg := lenshttp.NewAggregator(app.Store, slog.Default(), config.GetConfig())
	summary, err := agg.Aggregate(ctx, days)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.out)
	// Pretty output for people, compact output for pipes.
	if f, ok := c.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(summary)
}

// LeadCommand archives or restores one lead
type LeadCommand struct {
	name     string
	archived bool
}

func (c *LeadCommand) Name() string { return c.name }
func (c *LeadCommand) Description() string {
	if c.archived {
		return "Archives a lead: archive-lead <id>"
	}
	return "Restores an archived lead: restore-lead <id>"
}

func (c *LeadCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <lead-id>", c.name)
	}
	if app == nil {
		return errNoApp
	}

	if err := app.Store.SetLeadArchived(ctx, args[0], c.archived); err != nil {
		if errors.Is(err, store.ErrLeadNotFound) {
			return fmt.Errorf("lead %s not found", args[0])
		}
		return err
	}

	fmt.Printf("Lead %s archived=%t\n", args[0], c.archived)
	return nil
}

// ProcessCommand drains the beacon queue once
type ProcessCommand struct{}

func (c *ProcessCommand) Name() string        { return "process" }
func (c *ProcessCommand) Description() string { return "Processes queued beacons now" }

func (c *ProcessCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return errNoApp
	}
	return app.Jobs.ProcessBeacons()
}

// SeedCommand populates the DB with demo traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string { return "seed" }
func (c *SeedCommand) Description() string {
	return "Seeds the database with demo traffic: seed [sessions] [-seed n]"
}

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	sessions := 500
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			sessions = n
			args = args[1:]
		}
	}

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	seed := fs.Uint64("seed", 0, "random seed; 0 picks one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if sessions <= 0 {
		return fmt.Errorf("sessions must be positive, got %d", sessions)
	}

	if app == nil {
		return errNoApp
	}

	records := app.Store.DB()
	if config.GetConfig().UsesExternalStore() && records == nil {
		return fmt.Errorf("seed: %w", analytics.ErrStoreNotConfigured)
	}

	se := seeder.NewSeeder(app.DBManager, records, slog.Default(), sessions, *seed)
	_, err := se.Run(ctx)
	return err
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: %w", errNoApp)
	}

	db := app.DBManager.GetConnection()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Store driver: %s", config.GetConfig().StoreDriver)
	if _, err := app.Store.Now(ctx); err != nil {
		log.Printf("- Analytics store: unavailable (%v)", err)
	} else {
		log.Println("- Analytics store: Connected")
	}
	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage(os.Stdout)
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: lensctl [command] [args...]")
	fmt.Fprintln(w, "Available commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage(os.Stdout)
	os.Exit(1)
}
