package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/atendimento/internal/apiclient"
	"github.com/example/atendimento/internal/attachment"
	"github.com/example/atendimento/internal/config"
	"github.com/example/atendimento/internal/httpclient"
	"github.com/example/atendimento/internal/logging"
)

// app is built once per invocation by the root command's pre-run hook.
type app struct {
	logger *zap.Logger
	client *apiclient.Client
	token  string
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var (
		baseURL string
		token   string
	)

	root := &cobra.Command{
		Use:           "atendimento",
		Short:         "Submit clinical attendance data to the backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "token" {
				return nil
			}
			return a.init(baseURL, token)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend base URL (default $API_BASE_URL)")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token (default $API_TOKEN)")

	root.AddCommand(
		newListCommand(a),
		newRegisterAttendanceCommand(a),
		newConsentCommand(a),
		newAnamnesisCommand(a),
		newLesionCommand(a),
		newHealthUnitCommand(a),
		newTokenCommand(),
	)
	return root
}

func (a *app) init(baseURL, token string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if baseURL != "" {
		cfg.APIBaseURL = baseURL
	}
	if token != "" {
		cfg.APIToken = token
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	mode, err := attachment.ParseMode(cfg.ImageMode)
	if err != nil {
		return err
	}

	client, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIBaseURL,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.HTTPTimeout,
		}),
		Normalizer: &attachment.Normalizer{Mode: mode, CacheDir: cfg.ImageCacheDir},
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("invalid API_BASE_URL: %w", err)
	}

	a.logger = logger
	a.client = client
	a.token = cfg.APIToken
	return nil
}

// printResult writes the backend's JSON body indented.
func printResult(w io.Writer, result apiclient.Result) error {
	var body any
	if err := result.Decode(&body); err != nil {
		return err
	}
	return printJSON(w, body)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
