package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/homeledger/pkg/config"
	"github.com/cuemby/homeledger/pkg/log"
)

// Version information, set via ldflags during build.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "homeledger <data_root> <verb> [args...]",
	Short: "homeledger - an embedded, time-indexed personal finance ledger",
	Long: `homeledger stores bookkeeping operations in monthly buckets and
answers point-in-time balance queries against them.

Usage:
  homeledger <data_root> test_json <date>
  homeledger <data_root> test       <date> <aes_key_file>
  homeledger <dest>      migrate    <source_root> <aes_key_file>
  homeledger <data_root> server     <port> <rsa_key_file>`,
	Version:      fmt.Sprintf("%s (%s)", Version, Commit),
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to an optional YAML config file")
	rootCmd.PersistentFlags().Int("max-active-items", 500, "Maximum number of resident buckets held by the cache")
	rootCmd.PersistentFlags().Bool("force", false, "Overwrite an existing non-empty destination (migrate only)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	overrides := config.Overrides{}
	if cmd.Flags().Changed("max-active-items") {
		v, _ := cmd.Flags().GetInt("max-active-items")
		overrides.MaxActiveItems = &v
	}
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		level := log.Level(v)
		overrides.LogLevel = &level
	}
	if cmd.Flags().Changed("log-json") {
		v, _ := cmd.Flags().GetBool("log-json")
		overrides.LogJSON = &v
	}
	merged := config.Merge(cfg, overrides)
	log.Init(log.Config{Level: merged.LogLevel, JSONOutput: merged.LogJSON})
	return merged, nil
}

// runRoot dispatches on args[1], the verb. It is not a cobra subcommand
// because it is the second positional argument, not the first: the first
// is always the data root (or migrate's destination root).
func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return cmd.Usage()
	}
	root := args[0]
	verb := args[1]
	rest := args[2:]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	switch verb {
	case "test_json":
		if len(rest) != 1 {
			return cmd.Usage()
		}
		return runTest(root, rest[0], jsonSource(), cfg)
	case "test":
		if len(rest) != 2 {
			return cmd.Usage()
		}
		source, err := binarySource(rest[1])
		if err != nil {
			return err
		}
		return runTest(root, rest[0], source, cfg)
	case "migrate":
		if len(rest) != 2 {
			return cmd.Usage()
		}
		force, _ := cmd.Flags().GetBool("force")
		return runMigrate(root, rest[0], rest[1], force, cfg)
	case "server":
		if len(rest) != 2 {
			return cmd.Usage()
		}
		return runServer(root, rest[0], rest[1], cfg)
	default:
		return cmd.Usage()
	}
}
