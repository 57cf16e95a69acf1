package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/foxzi/listctl/internal/app"
	"github.com/foxzi/listctl/internal/config"
)

var (
	cfgFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	app.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "listctl",
	Short:        "listctl - mailing list segment client",
	Long:         `listctl manages segments (sublists) of mailing lists through the email-marketing list API.`,
	SilenceUsage: true,
}

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Run the Prometheus exporter",
	Long:  `Periodically poll member counts of the configured lists and their segments and serve them as Prometheus metrics.`,
	RunE:  runExporter,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("listctl version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: $XDG_CONFIG_HOME/listctl/config.yaml)")

	rootCmd.AddCommand(exporterCmd, versionCmd)
}

// configPath returns the -c flag or the default config location
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "listctl", "config.yaml")
}

func loadConfig() (*config.Config, error) {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		if cfgFile == "" && errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no config file at %s (run 'listctl config init' or use -c flag)", path)
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newApp loads the configuration and creates the application. Logs go to
// stderr so command output stays clean.
func newApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, os.Stderr), nil
}

func runExporter(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	return application.RunExporter(context.Background())
}
