package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/foxzi/listctl/internal/config"
)

var (
	initBaseURL string
	initAPIKey  string
	initUserKey string
	initJournal bool
	initForce   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create a listctl configuration file.

Missing values are prompted for. The API key is read without echo.

Examples:
  # Interactive mode
  listctl config init

  # Non-interactive, written to a custom path
  listctl -c ./listctl.yaml config init --base-url https://api.example.com --api-key KEY --user-key USER`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().StringVar(&initBaseURL, "base-url", "", "API base URL")
	configInitCmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key (will prompt if not provided)")
	configInitCmd.Flags().StringVar(&initUserKey, "user-key", "", "User key")
	configInitCmd.Flags().BoolVar(&initJournal, "journal", false, "Enable the call journal")
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd, configValidateCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	reader := bufio.NewReader(os.Stdin)

	if initBaseURL == "" {
		initBaseURL = prompt(reader, "API base URL", "")
	}

	if initAPIKey == "" {
		fmt.Print("API key: ")
		keyBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		fmt.Println()
		initAPIKey = strings.TrimSpace(string(keyBytes))
	}

	if initUserKey == "" {
		initUserKey = prompt(reader, "User key", "")
	}

	cfg := config.Default()
	cfg.API.BaseURL = initBaseURL
	cfg.API.APIKey = initAPIKey
	cfg.API.UserKey = initUserKey
	cfg.Journal.Enabled = initJournal

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func prompt(reader *bufio.Reader, question, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", question, defaultValue)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  File:     %s\n", path)
	fmt.Printf("  API:      %s\n", valueOrNone(cfg.API.BaseURL))
	fmt.Printf("  Journal:  %s (enabled: %t)\n", cfg.Journal.Path, cfg.Journal.Enabled)
	fmt.Printf("  Metrics:  %s%s\n", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	fmt.Printf("  Exporter: %d lists every %s\n", len(cfg.Exporter.Lists), cfg.Exporter.Interval)

	if err := cfg.ValidateClient(); err != nil {
		fmt.Printf("\nWarning: segment commands will fail: %v\n", err)
	}

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Print(string(data))
	return nil
}

func valueOrNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
