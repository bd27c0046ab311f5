package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimtrust/internal/logging"
	"github.com/ppiankov/claimtrust/internal/model"
)

const version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimtrust",
	Short: "claimtrust - check short claims against news coverage",
	Long: `claimtrust checks short social-media claims against news articles.

For each claim it searches the news with the claim's keywords, picks the
sentences most similar to the claim, judges whether each one supports or
contradicts it, and reports a trust score with the most decisive article.

A trust score describes retrieved coverage. It is not a ruling on truth.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of claimtrust.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("claimtrust v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimtrust/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// A missing .env file is fine
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.claimtrust")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CLAIMTRUST_*, e.g.
	// CLAIMTRUST_SEARCH_LANGUAGE for search.language
	viper.SetEnvPrefix("CLAIMTRUST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	registerDefaults(model.DefaultConfig())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so environment
// overrides apply to nested keys
func registerDefaults(cfg *model.Config) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	for key, value := range tree {
		viper.SetDefault(key, value)
	}

	// Secrets are never written to YAML, so bind them explicitly
	for _, key := range []string{"embedding.api_key", "nli.api_key", "translate.api_key", "llm.api_key"} {
		_ = viper.BindEnv(key)
	}
}

// loadConfig merges defaults, config file, environment and well-known
// provider variables, then validates the result
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	applyProviderEnv(cfg)

	if verbose {
		cfg.Output.Verbose = true
		if cfg.Logging.Level == "info" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProviderEnv fills credentials from the variables each provider
// documents, when the config left them empty
func applyProviderEnv(cfg *model.Config) {
	setIfEmpty := func(dst *string, envs ...string) {
		if *dst != "" {
			return
		}
		for _, env := range envs {
			if v := os.Getenv(env); v != "" {
				*dst = v
				return
			}
		}
	}

	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		setIfEmpty(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	case "anthropic", "claude":
		setIfEmpty(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	case "ollama":
		if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
			cfg.LLM.BaseURL = base
		}
	}

	switch strings.ToLower(cfg.Embedding.Provider) {
	case "openai":
		setIfEmpty(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	case "ollama":
		if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
			cfg.Embedding.BaseURL = base
		}
	}

	setIfEmpty(&cfg.Translate.APIKey, "GOOGLE_TRANSLATE_API_KEY", "GOOGLE_API_KEY")
	setIfEmpty(&cfg.NLI.APIKey, "HF_API_TOKEN", "HUGGINGFACE_API_KEY")
	setIfEmpty(&cfg.HTTP.HTTPProxy, "HTTP_PROXY", "http_proxy")
	setIfEmpty(&cfg.HTTP.HTTPSProxy, "HTTPS_PROXY", "https_proxy")
	setIfEmpty(&cfg.HTTP.NoProxy, "NO_PROXY", "no_proxy")
}

// setup loads configuration and builds the logger for a command
func setup() (*model.Config, zerolog.Logger, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("logging: %w", err)
	}

	return cfg, logger, closer, nil
}
