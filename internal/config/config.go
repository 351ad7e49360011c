package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"pantry-ledger"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	Gemini struct {
		APIKey string `envconfig:"GOOGLE_API_KEY"`
		Model  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	}

	Sheets struct {
		SpreadsheetID string `envconfig:"SHEET_ID"`
		SheetName     string `envconfig:"SHEET_NAME" default:"Sheet1"`
	}

	GCS struct {
		Bucket string `envconfig:"GCS_BUCKET"`
	}

	BigQuery struct {
		Project string `envconfig:"BQ_PROJECT"`
		Dataset string `envconfig:"BQ_DATASET" default:"pantry"`
	}
}

// Load reads configuration from the environment, loading a local .env
// file first if one exists.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
