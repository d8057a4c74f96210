package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NachoColl/agilevibecoding-sub003/internal/instructions"
	"github.com/NachoColl/agilevibecoding-sub003/internal/output"
	"github.com/NachoColl/agilevibecoding-sub003/internal/panel"
	"github.com/NachoColl/agilevibecoding-sub003/internal/store"
	"github.com/NachoColl/agilevibecoding-sub003/internal/validation"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

// Build metadata, injected by Execute from main's ldflags.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "avc",
	Short: "Agile Vibe Coding - validate epics and stories with reviewer panels",
	Long: `avc reviews agile backlog items with panels of AI validators.
It selects the right specialist reviewers for each epic and story,
runs the whole panel in parallel, and aggregates the reviews into a
single verdict with scores, issues, and improvement priorities.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(ui.Out, "avc %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/avc/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "avc")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("AVC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "avc")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "avc.db"))
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("validators.dir", "")
	viper.SetDefault("validators.rules", "")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store opens lazily so config and version commands run
	// without a database.
}

// rootRun handles `avc` with no subcommand: list the backlog if a store
// is available, otherwise show help.
func rootRun(cmd *cobra.Command) error {
	if _, err := getStore(); err != nil {
		return cmd.Help()
	}
	return itemListRun("")
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getEngine wires a validation engine over the shared store. The LLM
// client is optional: without an API key, panel previews for known
// domains still work and Validate reports a configuration error.
func getEngine() (*validation.Engine, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	table := panel.DefaultTable()
	if rulesPath := viper.GetString("validators.rules"); rulesPath != "" {
		overlay, err := panel.LoadOverlay(rulesPath)
		if err != nil {
			return nil, fmt.Errorf("load validator rules: %w", err)
		}
		table.Apply(overlay)
	}

	client := newLLMClient()

	// A nil *llm.Client must stay a nil interface, otherwise the engine
	// would call through it.
	var semantic panel.SemanticSelector
	var gen validation.Generator
	if client != nil {
		semantic = client
		gen = client
	}

	sel := panel.NewSelector(table, s, semantic)
	instr := instructions.New(viper.GetString("validators.dir"))
	return validation.NewEngine(s, sel, gen, instr), nil
}
