package dotstate

import (
	"fmt"
	"time"

	"github.com/shaneholloman/dotstate/pkg/commands"
	"github.com/shaneholloman/dotstate/pkg/setup"
	"github.com/shaneholloman/dotstate/pkg/ui"
	"github.com/spf13/cobra"
)

// watchPoll is how often --watch checks whether a new snapshot is due
const watchPoll = 500 * time.Millisecond

func newStatusCmd() *cobra.Command {
	var opts commands.StatusOptions
	var watch bool
	cmd := &cobra.Command{
		Use:     "status",
		Short:   MsgStatusShort,
		Long:    MsgStatusLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			if !watch {
				result, err := commands.Status(cmd.Context(), env, opts)
				if err != nil {
					return err
				}
				return render(cmd, result)
			}

			var renderErr error
			err = commands.WatchStatus(cmd.Context(), env, opts, watchPoll, func(result *commands.StatusResult) {
				if err := render(cmd, result); err != nil && renderErr == nil {
					renderErr = err
				}
			})
			if err != nil {
				return err
			}
			return renderErr
		},
	}
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, MsgFlagForce)
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, MsgFlagOffline)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, MsgFlagWatch)
	return cmd
}

func newSyncCmd() *cobra.Command {
	var opts commands.SyncOptions
	cmd := &cobra.Command{
		Use:     "sync",
		Short:   MsgSyncShort,
		Long:    MsgSyncLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.SyncWithRemote(cmd.Context(), env, opts)
			if result != nil {
				if rErr := render(cmd, result); rErr != nil {
					return rErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", MsgFlagMessage)
	return cmd
}

func newSetupCmd() *cobra.Command {
	var opts commands.SetupOptions
	cmd := &cobra.Command{
		Use:     "setup",
		Short:   MsgSetupShort,
		Long:    MsgSetupLong,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			theme := ui.ThemeFrom(cmd.Context())
			if !a.format.Structured() {
				opts.OnStatus = func(state setup.State, status string) {
					style := theme.Info
					switch state {
					case setup.Complete:
						style = theme.Success
					case setup.Failed:
						style = theme.Error
					}
					fmt.Fprintln(cmd.ErrOrStderr(), style.Render(status))
				}
			}
			opts.Interval = commands.DefaultSetupInterval

			result, err := commands.Setup(cmd.Context(), a.cfg, opts)
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
	cmd.Flags().StringVar(&opts.Token, "token", "", MsgFlagToken)
	cmd.Flags().StringVar(&opts.RepoName, "repo", "", MsgFlagRepo)
	cmd.Flags().BoolVar(&opts.Private, "private", false, MsgFlagPrivate)
	return cmd
}
