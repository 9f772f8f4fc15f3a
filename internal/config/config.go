// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type WhatsAppConfig struct {
	Token         string `yaml:"token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token"`
	APIBaseURL    string `yaml:"api_base_url"`
	APIVersion    string `yaml:"api_version"`
}

type AIConfig struct {
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	DefaultModel    string `yaml:"default_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// PersonaConfig holds the tutor persona and the canned user-facing strings.
// Keeping these in config (not code) lets the prompt be tuned without a redeploy.
type PersonaConfig struct {
	SystemPrompt     string `yaml:"system_prompt"`
	SystemPromptFile string `yaml:"system_prompt_file"`
	Greeting         string `yaml:"greeting"`
	OverloadReply    string `yaml:"overload_reply"`
	FallbackReply    string `yaml:"fallback_reply"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	AI       AIConfig       `yaml:"ai"`
	Redis    RedisConfig    `yaml:"redis"`
	Security SecurityConfig `yaml:"security"`
	Persona  PersonaConfig  `yaml:"persona"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Defaults mirror the original deployment: port 3000, Graph API v20.0 and the
// pre-shared verify token the webhook was registered with.
const (
	defaultPort        = 3000
	defaultAPIBaseURL  = "https://graph.facebook.com"
	defaultAPIVersion  = "v20.0"
	defaultVerifyToken = "podio-ajudante-token"
	defaultModel       = "gemini-2.0-flash"
)

const defaultSystemPrompt = "Você é um mentor de programação para a Olimpíada Brasileira de Informática (OBI). " +
	"Seu nome é Pódio Ajudante. Seu objetivo é ajudar um aluno a encontrar erros em seu código e a raciocinar " +
	"sobre os problemas, mas sem dar a resposta diretamente. Se encontrar um erro, explique o problema de forma " +
	"conceitual e sugira um caso de teste que faria o código falhar. NÃO forneça o código corrigido. " +
	"Seja breve, amigável e direto ao ponto, como se estivesse falando com um jovem de 15 anos."

const (
	defaultGreeting      = "Entendido! Estou pronto para ajudar."
	defaultOverloadReply = "Estou recebendo muitas perguntas agora. Tente novamente em alguns instantes."
	defaultFallbackReply = "Desculpe, não consegui analisar sua mensagem agora. Tente novamente em alguns instantes."
)

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, cfg.validate()
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.WhatsApp.APIBaseURL == "" {
		cfg.WhatsApp.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.WhatsApp.APIVersion == "" {
		cfg.WhatsApp.APIVersion = defaultAPIVersion
	}
	if cfg.WhatsApp.VerifyToken == "" {
		cfg.WhatsApp.VerifyToken = defaultVerifyToken
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = defaultModel
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
	if cfg.Persona.SystemPromptFile != "" {
		b, err := os.ReadFile(cfg.Persona.SystemPromptFile)
		if err != nil {
			return fmt.Errorf("read persona.system_prompt_file: %w", err)
		}
		cfg.Persona.SystemPrompt = string(b)
	}
	if cfg.Persona.SystemPrompt == "" {
		cfg.Persona.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Persona.Greeting == "" {
		cfg.Persona.Greeting = defaultGreeting
	}
	if cfg.Persona.OverloadReply == "" {
		cfg.Persona.OverloadReply = defaultOverloadReply
	}
	if cfg.Persona.FallbackReply == "" {
		cfg.Persona.FallbackReply = defaultFallbackReply
	}
	return nil
}

func (cfg *Config) validate() error {
	if cfg.Runtime.Dev {
		// Dev mode runs with the noop AI adapter and skips provider credentials.
		return nil
	}
	if cfg.WhatsApp.Token == "" {
		return errors.New("whatsapp.token is required")
	}
	if cfg.WhatsApp.PhoneNumberID == "" {
		return errors.New("whatsapp.phone_number_id is required")
	}
	if cfg.AI.GeminiKey == "" && cfg.AI.OpenAIKey == "" {
		return errors.New("one of ai.gemini_key or ai.openai_key is required")
	}
	return nil
}
