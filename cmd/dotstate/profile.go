package dotstate

import (
	"github.com/shaneholloman/dotstate/pkg/commands"
	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Short:   MsgProfileShort,
		Long:    MsgProfileLong,
		GroupID: "profile",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileList(cmd)
		},
	}
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileCreateCmd())
	cmd.AddCommand(newProfileRenameCmd())
	cmd.AddCommand(newProfileDeleteCmd())
	cmd.AddCommand(newProfileSwitchCmd())
	return cmd
}

func runProfileList(cmd *cobra.Command) error {
	env, err := newEnv(cmd)
	if err != nil {
		return err
	}
	result, err := commands.ProfileList(env)
	if err != nil {
		return err
	}
	return render(cmd, result)
}

// profileNames completes existing profile names. Completion skips the
// persistent hooks, so the config is loaded here.
func profileNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if _, err := appFrom(cmd); err != nil {
		if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
	}
	env, err := newEnv(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	result, err := commands.ProfileList(env)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var names []string
	for _, p := range result.Profiles {
		names = append(names, p.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   MsgProfileListShort,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileList(cmd)
		},
	}
}

func newProfileCreateCmd() *cobra.Command {
	var description, copyFrom string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: MsgProfileCreateShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.ProfileCreate(env, commands.ProfileCreateOptions{
				Name:        args[0],
				Description: description,
				CopyFrom:    copyFrom,
			})
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", MsgFlagDescription)
	cmd.Flags().StringVar(&copyFrom, "copy-from", "", MsgFlagCopyFrom)
	return cmd
}

func newProfileRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "rename <old> <new>",
		Short:             MsgProfileRenameShort,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: profileNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.ProfileRename(env, commands.ProfileRenameOptions{Old: args[0], New: args[1]})
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "delete <name>",
		Short:             MsgProfileDeleteShort,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.ProfileDelete(env, args[0])
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
}

func newProfileSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "switch <name>",
		Short:             MsgProfileSwitchShort,
		Long:              MsgSwitchLong,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.ProfileSwitch(env, args[0])
			if result != nil {
				if rErr := render(cmd, result); rErr != nil {
					return rErr
				}
			}
			return err
		},
	}
}
