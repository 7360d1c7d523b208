// Command collarconv converts GPS collar exports into the canonical
// serialnumber;time;latitude;longitude CSV, either one file at a time or
// through an HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/collarconv/internal/config"
	"github.com/JonMunkholm/collarconv/internal/core"
	"github.com/JonMunkholm/collarconv/internal/logging"
	"github.com/JonMunkholm/collarconv/internal/profile"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	exitError = 1
	exitUsage = 2
)

// codedError carries a process exit code.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func exitCode(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitError
}

// app is the state shared by every subcommand once config is loaded.
type app struct {
	cfg      *config.Config
	profiles *profile.Store

	logLevel   string
	profileDir string
}

func main() {
	// A missing .env is normal.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return exitCode(err)
	}
	return 0
}

// printError writes the coded user message and, when it adds anything, the
// technical detail.
func printError(w io.Writer, err error) {
	if !core.IsUserFacing(err) {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	ue := core.NewUserError(err)
	fmt.Fprintf(w, "error: %s\n", core.FormatUserError(err))
	if detail := ue.Technical.Error(); detail != ue.Error() {
		fmt.Fprintf(w, "  detail: %s\n", detail)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "collarconv",
		Short:         "Convert GPS collar exports to the canonical fix CSV",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.profileDir, "profile-dir", "", "Directory of mapping profiles (default from COLLARCONV_PROFILE_DIR)")

	root.AddCommand(
		newConvertCmd(a),
		newInspectCmd(a),
		newServeCmd(a),
		newProfileCmd(a),
	)
	return root
}

// init loads config and applies the global flags over it.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return withCode(exitUsage, err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.profileDir != "" {
		cfg.Profile.Dir = a.profileDir
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	a.cfg = cfg
	a.profiles = profile.NewStore(cfg.Profile.Dir)
	return nil
}
