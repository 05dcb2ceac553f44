package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dehost-labs/dehost/internal/api"
	"github.com/dehost-labs/dehost/internal/serverdb"
)

const adminUsage = `Usage: dehost-server <command> prune [flags]

Commands:
  codes prune   Delete unverified pairing codes that expired long ago
  events prune  Delete old pairing audit events`

type pruneFunc func(db *serverdb.ServerDB, olderThan time.Duration) (int64, error)

// adminCommand is a maintenance job run against the database instead of
// starting the server.
type adminCommand struct {
	defaultAge time.Duration
	ageUsage   string
	prune      pruneFunc
	report     string
}

var adminCommands = map[string]adminCommand{
	"codes": {
		defaultAge: 24 * time.Hour,
		ageUsage:   "prune unverified codes expired longer than this ago",
		prune:      (*serverdb.ServerDB).PruneExpiredCodes,
		report:     "pruned %d expired codes\n",
	},
	"events": {
		defaultAge: 90 * 24 * time.Hour,
		ageUsage:   "delete pairing events older than this",
		prune:      (*serverdb.ServerDB).CleanupPairingEvents,
		report:     "deleted %d pairing events\n",
	},
}

func isAdminCommand(name string) bool {
	_, ok := adminCommands[name]
	return ok
}

var errAdminUsage = errors.New("invalid admin command")

func runAdmin(args []string) error {
	return runAdminTo(os.Stdout, args)
}

func runAdminTo(w io.Writer, args []string) error {
	if len(args) < 2 || args[1] != "prune" {
		fmt.Fprintln(os.Stderr, adminUsage)
		return errAdminUsage
	}
	c, ok := adminCommands[args[0]]
	if !ok {
		fmt.Fprintln(os.Stderr, adminUsage)
		return fmt.Errorf("%w: %s", errAdminUsage, args[0])
	}

	fs := flag.NewFlagSet(args[0]+" prune", flag.ContinueOnError)
	olderThan := fs.Duration("older-than", c.defaultAge, c.ageUsage)
	dbPath := fs.String("db", "", "path to dehost.db (default: DEHOST_DB_PATH or ./data/dehost.db)")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}
	if *olderThan < 0 {
		return errors.New("--older-than must not be negative")
	}
	if *dbPath == "" {
		*dbPath = api.LoadConfig().DBPath
	}

	store, err := serverdb.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	n, err := c.prune(store, *olderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, c.report, n)
	return nil
}
