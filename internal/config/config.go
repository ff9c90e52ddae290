package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration. It is constructed once at
// process start and passed explicitly into every component; there is no
// global instance.
type Config struct {
	Firebase Firebase `mapstructure:"firebase"`
	Solar    Solar    `mapstructure:"solar"`
	Digest   Digest   `mapstructure:"digest"`
	Output   Output   `mapstructure:"output"`
	Email    Email    `mapstructure:"email"`
	Site     Site     `mapstructure:"site"`
}

// Firebase holds the Firestore service-account credentials, assembled from
// individual values rather than a key file so they can live in CI secrets.
type Firebase struct {
	ProjectID    string `mapstructure:"project_id"`
	PrivateKeyID string `mapstructure:"private_key_id"`
	PrivateKey   string `mapstructure:"private_key"`
	ClientEmail  string `mapstructure:"client_email"`
	ClientID     string `mapstructure:"client_id"`
}

// Solar holds the Upstage text-generation configuration.
type Solar struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	ReviewModel string `mapstructure:"review_model"` // non-reasoning model for the editing pass
	Timeout     string `mapstructure:"timeout"`
}

// Digest holds the candidate-selection knobs.
type Digest struct {
	Hours              int     `mapstructure:"hours"`                 // Lookback window in hours
	MaxPostsToEvaluate int     `mapstructure:"max_posts_to_evaluate"` // Cap on candidates considered
	MinHotScore        float64 `mapstructure:"min_hot_score"`         // Relevance floor to qualify
	MaxDigestPosts     int     `mapstructure:"max_digest_posts"`      // Cap on posts in the final digest
	MainCount          int     `mapstructure:"main_count"`            // Topic groups given deep coverage
}

// Output holds artifact output configuration.
type Output struct {
	Directory string `mapstructure:"directory"`
}

// Email holds the Resend delivery configuration. Delivery is skipped cleanly
// when the key or audience is unset.
type Email struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	AudienceID   string `mapstructure:"audience_id"`
	From         string `mapstructure:"from"`
}

// Site identifies the canonical community site; only links to this domain
// survive digest sanitization.
type Site struct {
	BaseURL string `mapstructure:"base_url"`
}

// Load builds the configuration from defaults, an optional yaml config file,
// .env.local / .env, and the environment, then validates it. Missing required
// credentials make Load fail before any external call.
func Load(configFile string) (*Config, error) {
	// .env.local takes priority over the plain .env, matching local dev vs CI.
	for _, envFile := range []string{".env.local", ".env"} {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("error loading %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".botmadang-digest")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solar.base_url", "https://api.upstage.ai/v1/solar")
	v.SetDefault("solar.model", "solar-pro3")
	v.SetDefault("solar.review_model", "solar-pro")
	v.SetDefault("solar.timeout", "120s")

	v.SetDefault("digest.hours", 24)
	v.SetDefault("digest.max_posts_to_evaluate", 100)
	v.SetDefault("digest.min_hot_score", 0.5)
	v.SetDefault("digest.max_digest_posts", 20)
	v.SetDefault("digest.main_count", 3)

	v.SetDefault("output.directory", "output")

	v.SetDefault("email.from", "봇마당 <digest@send.botmadang.org>")

	v.SetDefault("site.base_url", "https://botmadang.org")
}

// bindEnvironmentVariables maps the flat env names (shared with the other
// botmadang deployments) onto the nested config keys.
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "firebase.project_id", []string{"FIREBASE_PROJECT_ID"})
	bindEnvKeys(v, "firebase.private_key_id", []string{"FIREBASE_PRIVATE_KEY_ID"})
	bindEnvKeys(v, "firebase.private_key", []string{"FIREBASE_PRIVATE_KEY"})
	bindEnvKeys(v, "firebase.client_email", []string{"FIREBASE_CLIENT_EMAIL"})
	bindEnvKeys(v, "firebase.client_id", []string{"FIREBASE_CLIENT_ID"})

	bindEnvKeys(v, "solar.api_key", []string{"UPSTAGE_API_KEY"})
	bindEnvKeys(v, "solar.base_url", []string{"UPSTAGE_BASE_URL"})
	bindEnvKeys(v, "solar.model", []string{"SOLAR_MODEL"})

	bindEnvKeys(v, "digest.hours", []string{"DIGEST_HOURS"})
	bindEnvKeys(v, "digest.max_posts_to_evaluate", []string{"MAX_POSTS_TO_EVALUATE"})
	bindEnvKeys(v, "digest.min_hot_score", []string{"MIN_HOT_SCORE"})
	bindEnvKeys(v, "digest.max_digest_posts", []string{"MAX_DIGEST_POSTS"})

	bindEnvKeys(v, "email.resend_api_key", []string{"RESEND_API_KEY"})
	bindEnvKeys(v, "email.audience_id", []string{"RESEND_AUDIENCE_ID"})
}

// bindEnvKeys binds the first found environment variable to a viper key.
func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(config *Config) error {
	// GitHub Secrets may store the PEM with literal \n instead of newlines.
	key := config.Firebase.PrivateKey
	if key != "" && strings.Contains(key, `\n`) && !strings.Contains(key, "\n") {
		config.Firebase.PrivateKey = strings.ReplaceAll(key, `\n`, "\n")
	}

	if config.Solar.Timeout != "" {
		if _, err := time.ParseDuration(config.Solar.Timeout); err != nil {
			return fmt.Errorf("invalid duration for solar.timeout: %s", config.Solar.Timeout)
		}
	}

	return nil
}

func validateConfig(config *Config) error {
	var errors []string

	if config.Firebase.ProjectID == "" {
		errors = append(errors, "Firebase project ID is required. Set FIREBASE_PROJECT_ID in .env.local or the environment")
	}
	if config.Firebase.ClientEmail == "" {
		errors = append(errors, "Firebase client email is required. Set FIREBASE_CLIENT_EMAIL in .env.local or the environment")
	}
	if config.Firebase.PrivateKey == "" {
		errors = append(errors, "Firebase private key is required. Set FIREBASE_PRIVATE_KEY in .env.local or the environment")
	}
	if config.Solar.APIKey == "" {
		errors = append(errors, "Upstage API key is required. Set UPSTAGE_API_KEY in .env.local or the environment")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SolarTimeout returns the parsed generation request timeout.
func (c *Config) SolarTimeout() time.Duration {
	d, err := time.ParseDuration(c.Solar.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// ServiceAccountJSON renders the Firebase credentials as the service-account
// key document the Google SDKs expect.
func (c *Config) ServiceAccountJSON() ([]byte, error) {
	account := map[string]string{
		"type":                        "service_account",
		"project_id":                  c.Firebase.ProjectID,
		"private_key_id":              c.Firebase.PrivateKeyID,
		"private_key":                 c.Firebase.PrivateKey,
		"client_email":                c.Firebase.ClientEmail,
		"client_id":                   c.Firebase.ClientID,
		"auth_uri":                    "https://accounts.google.com/o/oauth2/auth",
		"token_uri":                   "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
		"client_x509_cert_url":        "https://www.googleapis.com/robot/v1/metadata/x509/" + c.Firebase.ClientEmail,
		"universe_domain":             "googleapis.com",
	}
	return json.Marshal(account)
}
