package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/config"
	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/flags"
	"github.com/zjrosen/subjecthierarchy/internal/plugins"
)

func newConfigCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings in the config file",
		Long: `Config edits the config file in place. Comments and unrelated settings
are kept.`,
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file in use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), a.configPath)
				return err
			},
		},
		&cobra.Command{
			Use:   "order [plugin,...]",
			Short: "Set the tie-break order; no argument restores registration order",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var order []string
				if len(args) == 1 {
					for _, name := range strings.Split(args[0], ",") {
						order = append(order, strings.TrimSpace(name))
					}
					check := a.cfg
					check.Resolver.PluginOrder = order
					if err := check.Validate(); err != nil {
						return err
					}
					if _, err := plugins.NewRegistry(a.cfg.PluginOptions(), order); err != nil {
						return err
					}
				}
				if err := config.SavePluginOrder(a.configPath, order); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "resolver.plugin_order = %v\n", order)
				return err
			},
		},
		&cobra.Command{
			Use:       "mode incremental|bulk",
			Short:     "Set when the consolidation pass runs",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{consistency.ModeIncremental.String(), consistency.ModeBulk.String()},
			RunE: func(cmd *cobra.Command, args []string) error {
				mode, err := consistency.ParseMode(args[0])
				if err != nil {
					return err
				}
				if err := config.SaveHierarchyMode(a.configPath, mode); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "hierarchy.mode = %s\n", mode)
				return err
			},
		},
		&cobra.Command{
			Use:   "flag [<name> on|off]",
			Short: "List feature flags, or turn one on or off",
			Args: func(cmd *cobra.Command, args []string) error {
				if len(args) != 0 && len(args) != 2 {
					return fmt.Errorf("want no arguments or <name> on|off")
				}
				return nil
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					current := flags.New(a.cfg.Flags)
					for _, f := range flags.Known() {
						if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-3s %s\n", f.Name, onOff(current.Enabled(f.Name)), f.Usage); err != nil {
							return err
						}
					}
					return nil
				}
				if err := flags.Check(args[0]); err != nil {
					return err
				}
				on, err := parseOnOff(args[1])
				if err != nil {
					return err
				}
				if err := config.SaveFlag(a.configPath, args[0], on); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "flags.%s = %t\n", args[0], on)
				return err
			},
		},
	)
	return c
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
