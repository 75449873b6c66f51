// Package cmd defines and implements the CLI commands for the harvester.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/app"
	"github.com/JakeFAU/douban-harvester/internal/douban"
)

var (
	cfgFile       string
	lookupTimeout time.Duration
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines what commands need from the application, so tests can inject
// a fake.
type App interface {
	Close()
	Logger() *zap.Logger
	Client() *douban.Client
	Run(ctx context.Context) error
}

// newApp is the application factory. It is a variable so tests can replace it.
var newApp = func(path string) (App, error) {
	return app.Build(path)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "douban-harvester",
		Short: "Rate-limited Douban movie, TV and celebrity metadata lookups.",
		Long: `douban-harvester fetches subject, celebrity and photo metadata from
Douban while throttling itself to stay under the site's risk-control
thresholds. Lookups can be run one-off from the command line or served
as JSON over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ./config.yaml, /etc/douban-harvester/, $HOME/.douban-harvester/)")

	cmd.PersistentFlags().DurationVar(&lookupTimeout, "timeout", 2*time.Minute,
		"overall timeout for one-off lookups")

	cmd.AddCommand(newServeCmd())
	for _, lookup := range newLookupCmds() {
		cmd.AddCommand(lookup)
	}
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
