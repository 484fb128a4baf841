package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/plugins"
)

func newColorCmd(a *app) *cobra.Command {
	var branch string
	c := &cobra.Command{
		Use:   "color <folder> [color]",
		Short: "Set a folder color and its branch override",
		Long: `Color sets the color of a folder. With --branch=on every data item in the
folder's branch displays in the folder color; --branch=off returns them
to their own colors.

Omit the color to change only the override.`,
		Example: `  shctl color "Jane Doe/Scans" "#ff0000" --branch=on
  shctl color "Jane Doe/Scans" --branch=off`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && branch == "" {
				return errors.New("nothing to do: give a color or --branch")
			}
			var on bool
			if branch != "" {
				var err error
				if on, err = parseOnOff(branch); err != nil {
					return fmt.Errorf("--branch: %w", err)
				}
			}

			ctx := cmd.Context()
			s, err := a.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			id, err := s.item(args[0])
			if err != nil {
				return err
			}
			p, ok := s.res.Registry().ByName(plugins.FolderName)
			folder, isFolder := p.(*plugins.Folder)
			if !ok || !isFolder {
				return fmt.Errorf("plugin %s is not registered", plugins.FolderName)
			}

			if len(args) == 2 {
				if err := folder.SetBranchColor(s.env, id, args[1]); err != nil {
					return err
				}
			}
			if branch != "" {
				if err := folder.SetApplyColorToBranch(s.env, id, on); err != nil {
					return err
				}
			}
			if err := s.save(ctx); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: color %q, branch override %s\n",
				s.env.Tree.Path(id), plugins.FolderColor(s.env, id), onOff(plugins.ApplyColorToBranch(s.env, id)))
			return err
		},
	}
	c.Flags().StringVar(&branch, "branch", "", "apply the folder color to the whole branch: on or off")
	return c
}
