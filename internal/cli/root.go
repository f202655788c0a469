package cli

import (
	"context"

	"skillwizard/internal/config"
	"skillwizard/internal/errors"

	"github.com/spf13/cobra"
)

// appKey carries the loaded configuration and logger to subcommands
type appKey struct{}

type app struct {
	cfg    *config.Config
	logger *errors.Logger
}

var rootCmd = &cobra.Command{
	Use:   "skillwizard",
	Short: "A guided skill assessment and job matching wizard",
	Long: `SkillWizard serves a step by step web wizard: visitors enter their
resume details, take a generated skill test, review feedback and learning
paths, and receive job recommendations from the assessment backend.`,
}

// Execute runs the root command with cfg and logger available to every
// subcommand through its context.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	rootCmd.SetContext(context.WithValue(ctx, appKey{}, &app{cfg: cfg, logger: logger}))
	return rootCmd.Execute()
}

func appFromContext(ctx context.Context) *app {
	a, ok := ctx.Value(appKey{}).(*app)
	if !ok || a.cfg == nil || a.logger == nil {
		panic("cli: command started without Execute")
	}
	return a
}

func getConfigFromContext(ctx context.Context) *config.Config {
	return appFromContext(ctx).cfg
}

func getLoggerFromContext(ctx context.Context) *errors.Logger {
	return appFromContext(ctx).logger
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
