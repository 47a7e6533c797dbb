package cmd

import (
	"flag"
	"log"

	"eda-backend/internal/narrative"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/option"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// LLMConfig selects the completion backend shared by the worker, the single
// process mode, and the analyze command.
type LLMConfig struct {
	Provider    string  `env:"LLM_PROVIDER" envDefault:"openai"`
	APIKey      string  `env:"OPENAI_API_KEY"`
	BaseURL     string  `env:"OPENAI_BASE_URL" envDefault:""`
	Model       string  `env:"MODEL_NAME" envDefault:"gpt-4o-mini"`
	MaxTokens   int64   `env:"MAX_TOKENS" envDefault:"1024"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.2"`
}

func CreateLLM(cfg LLMConfig) narrative.LLM {
	switch cfg.Provider {
	case "compatible":
		// Any service exposing the /v1/chat/completions shape.
		return narrative.NewCompatibleClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case "openai":
		opts := []option.RequestOption{}
		if cfg.APIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		return narrative.NewOpenAI(cfg.Model, cfg.MaxTokens, cfg.Temperature, opts...)
	default:
		log.Fatalf("unknown llm provider %q: must be 'openai' or 'compatible'", cfg.Provider)
		return nil
	}
}
