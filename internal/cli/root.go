package cli

import (
	"context"
	"os"

	"resumewizard/internal/apiclient"
	"resumewizard/internal/common"
	"resumewizard/internal/config"
	"resumewizard/internal/errors"
	"resumewizard/internal/jobroles"
	"resumewizard/internal/resume"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

// tokenEnv supplies the backend bearer token when --token is not given
const tokenEnv = "RESUMEWIZARD_TOKEN"

var backendToken string

var rootCmd = &cobra.Command{
	Use:   "resumewizard",
	Short: "Resume wizard service and backend client",
	Long: `resumewizard runs the backend-for-frontend of the resume wizard and
talks to the resume generation backend from the command line.

Use "serve" to start the HTTP service the wizard UI talks to. The "roles",
"generate" and "edit" commands call the backend directly, which is handy
for checking a deployment or scripting resume generation.`,
	SilenceUsage: true,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// resolveToken prefers the flag over the environment
func resolveToken() string {
	if backendToken != "" {
		return backendToken
	}
	return os.Getenv(tokenEnv)
}

// newBackend builds the resume service the client commands call
func newBackend(cfg *config.Config, logger *errors.Logger) *resume.Service {
	client := apiclient.NewFromConfig(cfg.Backend, logger, nil, nil)
	return resume.NewService(client, logger)
}

// newRolesService wraps a backend in the role cache and fallback catalog
func newRolesService(cfg *config.Config, backend resume.Backend, logger *errors.Logger, recorder jobroles.Recorder) (*jobroles.Service, *jobroles.Catalog) {
	catalog := jobroles.NewCatalog()
	if path := cfg.JobRoles.FallbackFile; path != "" {
		if err := catalog.LoadFile(path); err != nil {
			logger.Warn("Using built-in job role list", "error", err)
		}
	}
	cache := jobroles.NewCache(backend.GetJobRoles, logger)
	return jobroles.NewService(cache, catalog, recorder), catalog
}

// outputPreRun fills in the default format and validates it
func outputPreRun(cmdConfig *common.CommandConfig) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if cmdConfig.OutputFormat == "" {
			cmdConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(cmdConfig.OutputFormat, cfg.App.SupportedFormats)
	}
}

// addOutputFlags registers --output and --format with format completion
func addOutputFlags(cmd *cobra.Command, cmdConfig *common.CommandConfig) {
	cmd.Flags().StringVarP(&cmdConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cmdConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendToken, "token", "", "Bearer token for the resume backend (env "+tokenEnv+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(versionCmd)
}
