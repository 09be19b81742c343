package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parkline/parkpos/cli/pkg/output"
	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/internal/apierr"
	"github.com/parkline/parkpos/internal/app"
	"github.com/parkline/parkpos/internal/config"
	"github.com/parkline/parkpos/internal/guard"
	"github.com/parkline/parkpos/internal/notify"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
	cfg          *config.Config

	// appOptions are appended when building the client; tests use it to
	// swap storage and transport.
	appOptions []app.Option
)

var rootCmd = &cobra.Command{
	Use:   "parkpos",
	Short: "Parking point-of-sale client",
	Long: `parkpos is the terminal client for the parking point of sale.

Log in as an operator, register vehicles entering and leaving the lot,
manage your shift and cash register, and browse back-office data.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree and reports any failure to the operator.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		report(err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.parkpos/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", output.FormatTable, "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		output.Warn("Could not load config: %v", err)
		cfg = config.Default()
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

// openApp builds the wired client for one command invocation.
func openApp(ctx context.Context) (*app.App, error) {
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	return app.New(ctx, cfg, logger, appOptions...)
}

// enter opens the client and navigates to route. The returned context is
// cancelled when the command navigates elsewhere.
func enter(ctx context.Context, route string) (*app.App, context.Context, error) {
	a, err := openApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	scope, err := a.Enter(ctx, route)
	if err != nil {
		return nil, nil, errors.Join(err, a.Close())
	}
	return a, scope, nil
}

func serviceCode(cmd *cobra.Command) (string, error) {
	code, _ := cmd.Flags().GetString("service-code")
	if code == "" {
		code = cfg.API.ServiceCode
	}
	if code == "" {
		return "", errors.New("service code is required (--service-code or api.service_code)")
	}
	return code, nil
}

func report(err error) {
	var redirected *app.RedirectedError
	var apiErr *apierr.Error
	switch {
	case errors.As(err, &redirected):
		output.Warn("%s", redirectHint(redirected))
	case apierr.Classify(err) == apierr.KindUnauthorized:
		output.Warn("%s", apierr.MsgSession)
	case apierr.IsCanceled(err):
		output.Warn("Cancelled.")
	case errors.As(err, &apiErr), apierr.IsNetwork(err):
		if n, ok := notify.FromError(err); ok {
			output.Notify(n)
		}
	default:
		output.Error("%v", err)
	}
}

func redirectHint(e *app.RedirectedError) string {
	switch e.Result.Route.Path {
	case guard.LoginRoute:
		return "Not logged in. Run 'parkpos login' first."
	case guard.ChangePasswordRoute:
		return "Your password must be changed. Run 'parkpos passwd' first."
	default:
		return fmt.Sprintf("Not allowed to open %s (sent to %s).", e.Target, e.Result.URL)
	}
}
