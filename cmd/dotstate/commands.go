package dotstate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/shaneholloman/dotstate/internal/version"
	"github.com/shaneholloman/dotstate/pkg/commands"
	"github.com/shaneholloman/dotstate/pkg/config"
	"github.com/shaneholloman/dotstate/pkg/doctor"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/ui"
	"github.com/spf13/cobra"
)

// app is what PersistentPreRunE loads for every command
type app struct {
	cfg    *config.Config
	theme  *ui.Theme
	format ui.Format
}

type appKey struct{}

func appFrom(cmd *cobra.Command) (*app, error) {
	if cmd.Context() == nil {
		return nil, errors.New(errors.ErrInternal, "command context was not initialized")
	}
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New(errors.ErrInternal, "command context was not initialized")
	}
	return a, nil
}

// newEnv wires the services for the loaded config
func newEnv(cmd *cobra.Command) (*commands.Env, error) {
	a, err := appFrom(cmd)
	if err != nil {
		return nil, err
	}
	return commands.NewEnv(a.cfg)
}

// render writes result to the command's output in the selected format
func render(cmd *cobra.Command, result interface{}) error {
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}
	r, err := ui.NewRenderer(a.format, cmd.OutOrStdout(), a.theme)
	if err != nil {
		return err
	}
	return r.RenderResult(result)
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	initTemplateFormatting()

	var (
		verbosity  int
		configPath string
		repoPath   string
		profile    string
		output     string
	)

	rootCmd := &cobra.Command{
		Use:     "dotstate",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupLogger(verbosity, paths.LogFilePath())
			log.Debug().Str("command", cmd.CommandPath()).Msg("Command started")

			format, err := ui.ParseFormat(output)
			if err != nil {
				return err
			}

			overrides := map[string]interface{}{}
			if repoPath != "" {
				overrides["repo_path"] = repoPath
			}
			if profile != "" {
				overrides["active_profile"] = profile
			}
			cfg, err := config.Load(config.LoadOptions{Path: configPath, Overrides: overrides})
			if err != nil {
				return err
			}

			theme, err := ui.LoadTheme(cfg.Theme, ui.NoColor(os.Getenv))
			if err != nil {
				log.Warn().Err(err).Str("theme", cfg.Theme).Msg("Unknown theme, using the default")
				if theme, err = ui.LoadTheme("", ui.NoColor(os.Getenv)); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = ui.WithTheme(ctx, theme)
			ctx = context.WithValue(ctx, appKey{}, &app{cfg: cfg, theme: theme, format: format})
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errors.New(errors.ErrInvalidInput, "no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", MsgFlagConfig)
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo-path", "", MsgFlagRepoPath)
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", MsgFlagProfile)
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "auto", MsgFlagOutput)

	rootCmd.SetVersionTemplate(fmt.Sprintf(MsgVersionFormat, version.Version, version.Commit, version.Date))

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "COMMANDS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "profile", Title: "PROFILES:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})

	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newActivateCmd())
	rootCmd.AddCommand(newDeactivateCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newCommonCmd())
	rootCmd.AddCommand(newSetupCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// ReportError renders err on w. Structured formats are honored when the
// --output flag could be read.
func ReportError(cmd *cobra.Command, w io.Writer, err error) {
	format := ui.FormatText
	theme := ui.PlainTheme()
	if a, appErr := appFrom(cmd); appErr == nil {
		format, theme = a.format, a.theme
		if format == ui.FormatAuto {
			format = ui.FormatTerminal
		}
	}
	r, rErr := ui.NewRenderer(format, w, theme)
	if rErr != nil {
		fmt.Fprintf(w, "error: %s\n", errors.UserMessage(err))
		return
	}
	_ = r.RenderError(err)
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "activate",
		Short:   MsgActivateShort,
		Long:    MsgActivateLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.Activate(env)
			if result != nil {
				if rErr := render(cmd, result); rErr != nil {
					return rErr
				}
			}
			return err
		},
	}
}

func newDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "deactivate",
		Short:   MsgDeactivateShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.Deactivate(env)
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
}

func newAddCmd() *cobra.Command {
	var (
		common bool
		to     string
	)
	cmd := &cobra.Command{
		Use:     "add <path>...",
		Short:   MsgAddShort,
		Long:    MsgAddLong,
		Example: MsgAddExample,
		GroupID: "core",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			for _, p := range args {
				result, err := commands.Add(env, commands.AddOptions{Path: p, Common: common, Profile: to})
				if err != nil {
					return err
				}
				if err := render(cmd, result); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&common, "common", false, MsgFlagCommon)
	cmd.Flags().StringVar(&to, "to", "", MsgFlagTo)
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <path>...",
		Aliases: []string{"rm"},
		Short:   MsgRemoveShort,
		GroupID: "core",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			for _, p := range args {
				result, err := commands.Remove(env, commands.RemoveOptions{Path: p})
				if err != nil {
					return err
				}
				if err := render(cmd, result); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   MsgListShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.List(env, commands.ListOptions{All: all})
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, MsgFlagAll)
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "scan",
		Short:   MsgScanShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.Scan(env)
			if err != nil {
				return err
			}
			return render(cmd, result)
		},
	}
}

func newDoctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Short:   MsgDoctorShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			result, err := commands.Doctor(cmd.Context(), env, commands.DoctorOptions{Fix: fix})
			if result != nil {
				if rErr := render(cmd, result); rErr != nil {
					return rErr
				}
			}
			if err != nil {
				return err
			}
			if n := result.Count(doctor.Error); n > 0 {
				return errors.Newf(errors.ErrValidationFailed, MsgDoctorFailed, n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, MsgFlagFix)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}
