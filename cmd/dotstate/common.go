package dotstate

import (
	"github.com/shaneholloman/dotstate/pkg/commands"
	"github.com/spf13/cobra"
)

func newCommonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "common",
		Short:   MsgCommonShort,
		GroupID: "profile",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCommonAddCmd())
	cmd.AddCommand(newCommonRemoveCmd())
	return cmd
}

func newCommonAddCmd() *cobra.Command {
	var cleanup []string
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: MsgCommonAddShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.CommonAdd(env, commands.CommonAddOptions{Path: args[0], Cleanup: cleanup})
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
	cmd.Flags().StringSliceVar(&cleanup, "cleanup", nil, MsgFlagCleanup)
	_ = cmd.RegisterFlagCompletionFunc("cleanup", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return profileNames(cmd, nil, toComplete)
	})
	return cmd
}

func newCommonRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <path>",
		Aliases: []string{"rm"},
		Short:   MsgCommonRmShort,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.CommonRemove(env, commands.CommonRemoveOptions{Path: args[0]})
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
}
