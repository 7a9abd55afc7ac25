package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "upskiller"
)

type Config struct {
	Listen    string           `mapstructure:"listen"`
	Catalog   *CatalogConfig   `mapstructure:"catalog"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Recommend *RecommendConfig `mapstructure:"recommend"`
}

type CatalogConfig struct {
	DSN       string `mapstructure:"dsn"`
	DSNFile   string `mapstructure:"dsn-file"`
	Dimension int    `mapstructure:"dimension"`
}

type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type RecommendConfig struct {
	Cache           *CacheConfig              `mapstructure:"cache"`
	Thresholds      *ThresholdConfig          `mapstructure:"thresholds"`
	Quotas          map[string]map[string]int `mapstructure:"quotas"`
	MaxResults      int                       `mapstructure:"max-results"`
	Concurrency     int                       `mapstructure:"concurrency"`
	ProviderTimeout time.Duration             `mapstructure:"provider-timeout"`
	SearchLimit     int                       `mapstructure:"search-limit"`
}

type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Capacity      int           `mapstructure:"capacity"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
}

type ThresholdConfig struct {
	Skill   float64 `mapstructure:"skill"`
	Field   float64 `mapstructure:"field"`
	Default float64 `mapstructure:"default"`
	Floor   float64 `mapstructure:"floor"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "upskiller recommends learning resources that fill identified skill gaps",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("catalog.dsn", "UPSKILLER_CATALOG_DSN"); err != nil {
		log.Fatalf("binding UPSKILLER_CATALOG_DSN environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is upskiller.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	setDefaults()

	// Config needed only for commands that build the engine.
	if serveCmd.CalledAs() == "" && recommendCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error. A missing file
	// is fine: defaults cover a local run against the offline embedder.
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Fatal(err)
		}
	}
}

func setDefaults() {
	viper.SetDefault("listen", ":8080")

	viper.SetDefault("catalog.dimension", 768)

	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.gemini.max-retries", 2)

	viper.SetDefault("recommend.cache.enabled", true)
	viper.SetDefault("recommend.cache.capacity", 1000)
	viper.SetDefault("recommend.cache.ttl", "30m")
	viper.SetDefault("recommend.cache.sweep-interval", "1h")

	viper.SetDefault("recommend.thresholds.skill", 0.50)
	viper.SetDefault("recommend.thresholds.field", 0.40)
	viper.SetDefault("recommend.thresholds.default", 0.50)
	viper.SetDefault("recommend.thresholds.floor", 0.30)

	viper.SetDefault("recommend.max-results", 25)
	viper.SetDefault("recommend.concurrency", 20)
	viper.SetDefault("recommend.provider-timeout", "10s")
	viper.SetDefault("recommend.search-limit", 100)

	// Single courses dominate SKILL quotas: most learners fixing a named
	// skill gap want one course, not a degree. FIELD flips that around.
	viper.SetDefault("recommend.quotas", map[string]map[string]int{
		"skill": {
			"course":         15,
			"project":        5,
			"certification":  3,
			"specialization": 1,
			"degree":         1,
		},
		"field": {
			"specialization": 10,
			"degree":         8,
			"course":         3,
			"certification":  2,
			"project":        2,
		},
		"default": {
			"course":         10,
			"project":        4,
			"certification":  4,
			"specialization": 4,
			"degree":         3,
		},
	})
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
