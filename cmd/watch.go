package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/config"
	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/persist"
	"github.com/zjrosen/subjecthierarchy/internal/presentation"
	"github.com/zjrosen/subjecthierarchy/internal/pubsub"
	"github.com/zjrosen/subjecthierarchy/internal/scenefile"
	"github.com/zjrosen/subjecthierarchy/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <scene.yaml>",
		Short: "Rebuild the saved scene whenever a scene file changes",
		Long: `Watch treats the scene file as the source of the saved scene. Every time
the file changes the scene is rebuilt from it, saved, and the change to
the tree is printed as a diff. With watch_config set, edits to the config
file apply to the next rebuild.

Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func (a *app) watch(ctx context.Context, scenePath string, out, errOut io.Writer) error {
	db, err := persist.Open(a.cfg.Database, persist.WithTracer(a.tracing.Tracer()))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	broker := pubsub.NewBroker[consistency.Notice]()
	defer broker.Close()
	go logNotices(broker.Subscribe(ctx))

	paths := []string{scenePath}
	configPath := a.viper.ConfigFileUsed()
	if a.cfg.WatchConfig && configPath != "" {
		paths = append(paths, configPath)
	}
	w, err := watcher.New(watcher.DefaultConfig(paths...))
	if err != nil {
		return err
	}
	changes, err := w.Start(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	tr := presentation.NewTreeRenderer(out, presentation.TreeOptions{})
	previous, err := a.rebuild(ctx, db, scenePath, broker, errOut)
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
	}
	fmt.Fprint(out, previous)
	fmt.Fprintf(out, "Watching %s\n", scenePath)

	for {
		var change watcher.Change
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			change = c
		}
		if len(paths) > 1 && change.Path == configPath {
			if err := a.reloadConfig(); err != nil {
				fmt.Fprintln(errOut, "Error:", err)
				continue
			}
			fmt.Fprintln(out, "Config reloaded")
		}

		current, err := a.rebuild(ctx, db, scenePath, broker, errOut)
		if err != nil {
			fmt.Fprintln(errOut, "Error:", err)
			continue
		}
		diff := presentation.DiffTrees(previous, current)
		if presentation.Changed(diff) {
			fmt.Fprint(out, presentation.FormatDiff(tr.Renderer(), diff))
		} else {
			fmt.Fprintln(out, "No changes")
		}
		previous = current
	}
}

// rebuild imports the scene file into an empty engine, saves it and
// returns the rendered tree.
func (a *app) rebuild(ctx context.Context, db *persist.DB, scenePath string,
	broker pubsub.Publisher[consistency.Notice], pickerOut io.Writer,
) (string, error) {
	scene, err := scenefile.ReadFile(scenePath)
	if err != nil {
		return "", err
	}
	s, err := a.newEngine(db, pickerOut, sessionConfig{publisher: broker})
	if err != nil {
		return "", err
	}
	defer s.release()

	if _, err := scenefile.Import(ctx, s.ctl, scene); err != nil {
		return "", err
	}
	if err := s.save(ctx); err != nil {
		return "", err
	}
	r := presentation.NewTreeRenderer(io.Discard, presentation.TreeOptions{})
	return r.Render(presentation.FromTree(s.env)), nil
}

func (a *app) reloadConfig() error {
	if err := a.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg, err := config.Decode(a.viper)
	if err != nil {
		return err
	}
	a.cfg = cfg
	log.Info(log.CatConfig, "config reloaded", "path", a.viper.ConfigFileUsed())
	return nil
}

func logNotices(events <-chan pubsub.Event[consistency.Notice]) {
	for ev := range events {
		switch ev.Type {
		case pubsub.PassCompletedEvent:
			log.Info(log.CatConsistency, "pass completed", "changes", ev.Payload.Report.Total())
		default:
			log.Debug(log.CatConsistency, string(ev.Type), "item", ev.Payload.Item, "parent", ev.Payload.Parent)
		}
	}
}
