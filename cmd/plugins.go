package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/presentation"
)

func newPluginsCmd(a *app) *cobra.Command {
	var (
		item   string
		format string
	)
	c := &cobra.Command{
		Use:   "plugins",
		Short: "List plugins in tie-break order, or their confidences for an item",
		Long: `Plugins lists the registered plugins in registration order, which is
also the order that settles ties. resolver.plugin_order in the config
moves plugins to the front.

With --item every plugin's ownership confidence for that item is shown
and the winner is marked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := presentation.ParseFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			f := presentation.NewFormatter(cmd.OutOrStdout(), format)
			if item == "" {
				return f.FormatPlugins(presentation.PluginNames(s.res.Registry()))
			}
			id, err := s.item(item)
			if err != nil {
				return err
			}
			d, err := s.res.OwnershipDecision(id)
			if err != nil {
				return err
			}
			return f.FormatCandidates(presentation.FromCandidates(s.res.OwnershipTable(id), d.Plugin))
		},
	}
	c.Flags().StringVar(&item, "item", "", "show ownership confidences for this item")
	c.Flags().StringVarP(&format, "format", "f", presentation.FormatTable, "output format: table or json")
	return c
}
