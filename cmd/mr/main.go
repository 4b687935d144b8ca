package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_remote/internal/adapters/clock"
	"github.com/mikey-austin/media_remote/internal/adapters/config"
	"github.com/mikey-austin/media_remote/internal/adapters/hass"
	"github.com/mikey-austin/media_remote/internal/adapters/notify"
	"github.com/mikey-austin/media_remote/internal/adapters/output"
	"github.com/mikey-austin/media_remote/internal/adapters/selection"
	"github.com/mikey-austin/media_remote/internal/core"
	"github.com/mikey-austin/media_remote/internal/ports"
)

type app struct {
	service core.Service
	printer output.Printer
	hub     *hass.Client
	json    bool
	timeout time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mr",
		Short:         "Media Remote CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	var (
		hubURL  string
		token   string
		timeout time.Duration
		jsonOut bool
		noColor bool
		verbose bool
	)

	root.PersistentFlags().StringVar(&hubURL, "hub", "", "hub URL (http(s):// or ws(s)://)")
	root.PersistentFlags().StringVar(&token, "token", "", "hub access token (default $"+config.TokenEnv+")")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if noColor {
			pterm.DisableColor()
		}
		logger := zap.NewNop()
		if verbose {
			dev, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger = dev
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if hubURL == "" {
			hubURL = cfg.HubURL
		}
		if token == "" {
			token = cfg.Token
		}
		if hubURL == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "hub URL is required (set --hub or hub_url in config)"}
		}
		if token == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "hub token is required (set --token, " + config.TokenEnv + " or token in config)"}
		}

		store, err := selection.NewStore()
		if err != nil {
			return err
		}

		client := hass.NewClient(logger, hubURL, token)
		ctx, cancel := withTimeout(context.Background(), timeout)
		defer cancel()
		if err := client.Connect(ctx); err != nil {
			return core.WrapError(core.ExitUnavailable, "connect to hub", err)
		}

		coreCfg := cfg.Core()
		coreCfg.HubURL = hubURL
		coreCfg.Token = token

		var printer output.Printer = output.HumanPrinter{}
		var notifier ports.Notifier = notify.Terminal{}
		if jsonOut {
			printer = output.JSONPrinter{}
			notifier = notify.Log{Logger: logger}
		}

		service := core.Service{
			Hub:        client,
			Resolver:   core.NewNameResolver(coreCfg.Resolver),
			Clock:      clock.Clock{},
			Selections: store,
			Notifier:   notifier,
			Config:     coreCfg,
			Logger:     logger,
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service: service,
			printer: printer,
			hub:     client,
			json:    jsonOut,
			timeout: timeout,
		}))
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app := fromContext(cmd); app != nil && app.hub != nil {
			return app.hub.Close()
		}
		return nil
	}

	root.AddCommand(lsCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(activeCommand())
	root.AddCommand(selectCommand())
	root.AddCommand(playCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(toggleCommand())
	root.AddCommand(stopCommand())
	root.AddCommand(nextCommand())
	root.AddCommand(prevCommand())
	root.AddCommand(seekCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(shuffleCommand())
	root.AddCommand(repeatCommand())
	root.AddCommand(playMediaCommand())
	root.AddCommand(transferCommand())
	root.AddCommand(browseCommand())

	return root
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func selectorArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

var errBothFlags = errors.New("use only one of the flags")
