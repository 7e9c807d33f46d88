package llm

import (
	"github.com/gamepop/fin-x-watcher/pkg/config"
)

type Config struct {
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
	Timeout   int // seconds
}

// LoadConfig reads the classifier endpoint configuration from LLM_* env
// vars. The default URL targets the xAI OpenAI-compatible endpoint.
func LoadConfig() Config {
	return Config{
		Model:     config.GetEnv("LLM_MODEL", "grok-4-1-fast"),
		APIKey:    config.GetEnv("LLM_API_KEY", config.GetEnv("XAI_API_KEY", "")),
		APIURL:    config.GetEnv("LLM_API_URL", "https://api.x.ai/v1"),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 1000),
		Timeout:   config.GetEnvInt("LLM_TIMEOUT_SECONDS", 60),
	}
}
