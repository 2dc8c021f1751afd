package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mj1618/desktopd/internal/config"
	"github.com/mj1618/desktopd/internal/logging"
	"github.com/mj1618/desktopd/internal/output"
	"github.com/mj1618/desktopd/internal/version"
)

var (
	appConfig = config.DefaultConfig()
	logger    = zerolog.Nop()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "desktopd",
	Short: "Resilient desktop automation daemon",
	Long: `desktopd reads and drives desktop applications through several automation
backends (accessibility tree walk, browser debug protocol, OS scripting and
in-page scripting), falling back between them and reconnecting dropped
debugging endpoints. Element refs stay stable across reads.`,
	SilenceUsage: true,
}

func Execute() {
	defer func() {
		if logCloser != nil {
			logCloser.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version.String()
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("format", "yaml", "Output format: yaml, json")
	rootCmd.PersistentFlags().Bool("pretty", false, "Pretty-print JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level (trace, debug, info, warn, error)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		path, _ := rootCmd.PersistentFlags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if lvl, _ := rootCmd.PersistentFlags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		appConfig = cfg

		log, closer, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		logger, logCloser = log, closer

		format, _ := rootCmd.PersistentFlags().GetString("format")
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		output.OutputFormat = f
		output.PrettyOutput, _ = rootCmd.PersistentFlags().GetBool("pretty")
		return nil
	}
}

// requireString returns a non-empty string flag or an error naming it.
func requireString(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}
