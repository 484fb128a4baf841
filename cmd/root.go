// Package cmd implements the shctl command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/subjecthierarchy/internal/config"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/tracing"
)

var version = "dev"

// app carries what the persistent pre-run prepared for a command.
type app struct {
	viper       *viper.Viper
	cfg         config.Config
	configPath  string
	tracing     *tracing.Provider
	closeLog    func()
	cfgFile     string
	database    string
	debug       bool
	interactive bool
	in          io.Reader
}

// newRoot builds the command tree. Every call returns independent flag
// state; the caller shuts the app down after Execute.
func newRoot(in io.Reader, out, errOut io.Writer) (*cobra.Command, *app) {
	a := &app{in: in}

	root := &cobra.Command{
		Use:   "shctl",
		Short: "Subject hierarchy engine",
		Long: `shctl keeps a subject hierarchy of data items, folders, patients and
studies consistent with a scene and lets plugins own the items they know.

The scene is stored in a SQLite document (default .shctl/scene.db). Every
command loads it, runs the consolidation pass and saves it back when it
changed something.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: .shctl/config.yaml, then ~/.config/shctl/config.yaml)")
	root.PersistentFlags().StringVar(&a.database, "database", "", "scene database path")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "write debug logs to debug.log")
	root.PersistentFlags().BoolVarP(&a.interactive, "interactive", "i", false, "ask which plugin wins when confidences tie")

	root.AddCommand(
		newImportCmd(a),
		newTreeCmd(a),
		newReparentCmd(a),
		newResolveCmd(a),
		newPluginsCmd(a),
		newColorCmd(a),
		newVisibilityCmd(a),
		newRemoveCmd(a),
		newExplainCmd(a),
		newConfigCmd(a),
		newWatchCmd(a),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command) error {
	a.viper = viper.New()
	_ = a.viper.BindPFlag("database", cmd.Flags().Lookup("database"))
	_ = a.viper.BindPFlag("debug", cmd.Flags().Lookup("debug"))
	_ = a.viper.BindPFlag("resolver.interactive", cmd.Flags().Lookup("interactive"))

	log.SetConsole(cmd.ErrOrStderr(), log.LevelWarn)

	cfg, path, err := config.Load(a.viper, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg, a.configPath = cfg, path
	if a.configPath == "" {
		a.configPath = config.LocalFile
	}

	if cfg.Debug || os.Getenv("SHCTL_DEBUG") != "" {
		closeLog, err := log.Init("debug.log")
		if err != nil {
			return fmt.Errorf("opening debug log: %w", err)
		}
		a.closeLog = closeLog
		log.Info(log.CatConfig, "config loaded", "path", path, "command", cmd.Name())
	}

	provider, err := tracing.NewProvider(cfg.TracingConfig())
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	a.tracing = provider
	return nil
}

func (a *app) shutdown() {
	if a.tracing != nil {
		if err := a.tracing.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
		}
	}
	if a.closeLog != nil {
		a.closeLog()
	}
	log.SetConsole(nil, log.LevelWarn)
}

// colorEnabled reports whether out is a terminal that takes color.
func colorEnabled(out io.Writer) bool {
	return lipgloss.NewRenderer(out).ColorProfile() != termenv.Ascii
}

// Execute runs the root command and returns the process exit code: 130
// when interrupted, 1 on any other error.
func Execute() int {
	root, a := newRoot(os.Stdin, os.Stdout, os.Stderr)
	defer a.shutdown()
	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}
