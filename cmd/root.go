package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dehost-labs/dehost/internal/cliconfig"
	"github.com/dehost-labs/dehost/internal/output"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var versionStr = "dev"

// SetVersion records the build version shown by the banner and `dehost version`.
func SetVersion(v string) { versionStr = v }

var rootCmd = &cobra.Command{
	Use:   "dehost",
	Short: "Deploy static sites to IPFS from your terminal",
	Long: `dehost builds your web project, publishes it to IPFS through Lighthouse and
records the deployment on your dehost dashboard.

Run "dehost login" once to pair this machine with your account.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A project .env may carry LIGHTHOUSE_API_KEY or DEHOST_URL.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		debug, _ := cmd.Flags().GetBool("debug")
		setupLogging(debug)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(output.Banner(versionStr))
		fmt.Println()
		_ = cmd.Usage()
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := interruptContext(context.Background())
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

// interruptContext is cancelled by the first SIGINT or SIGTERM. Signal
// handling is then released so a second Ctrl-C kills the process.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go releaseOnDone(ctx, stop)
	return ctx, stop
}

func releaseOnDone(ctx context.Context, stop func()) {
	<-ctx.Done()
	stop()
}

func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// serverFlags is shared by every command that talks to the dehost server.
func serverFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.String("server", "", "dehost server URL (default: $DEHOST_URL, config, or "+cliconfig.DefaultServerURL+")")
	return flags
}

// serverURL resolves the --server flag, falling back to the configured URL.
func serverURL(cmd *cobra.Command) string {
	if s, _ := cmd.Flags().GetString("server"); s != "" {
		return strings.TrimRight(s, "/")
	}
	return cliconfig.GetServerURL()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "auth", Title: "Account Commands:"},
		&cobra.Group{ID: "deploy", Title: "Deploy Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")

	rootCmd.PersistentFlags().Bool("debug", false, "Log debug output to stderr")
}
