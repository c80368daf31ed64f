// Package config loads the desktop host's on-disk settings file and
// overlays provider API keys from the environment, the way the teacher's
// cmd/agent/main.go loads a .env file before wiring providers.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/scribeflow/meetcore/pkg/asrlocal"
	"github.com/scribeflow/meetcore/pkg/chunker"
	"github.com/scribeflow/meetcore/pkg/dispatch"
)

// Providers holds API keys read from the environment. Never serialized.
type Providers struct {
	GroqKey       string
	OpenAIKey     string
	AnthropicKey  string
	GoogleKey     string
	DeepgramKey   string
	AssemblyAIKey string
}

// File is the on-disk, version-controllable part of the configuration.
type File struct {
	Audio struct {
		SampleRate int `yaml:"sample_rate"`
		Channels   int `yaml:"channels"`
		DeviceName string `yaml:"device"`
	} `yaml:"audio"`

	Chunker chunker.Config `yaml:"chunker"`
	Local   asrlocal.Config `yaml:"local_asr"`
	Budget  dispatch.LedgerConfig `yaml:"budget"`

	RemoteASRProviders []string `yaml:"remote_asr_providers"`
	SummarizeProviders []string `yaml:"summarize_providers"`

	StorePath string `yaml:"store_path"`
}

// DefaultFile returns sane defaults matching spec.md defaults.
func DefaultFile() File {
	var f File
	f.Audio.SampleRate = 44100
	f.Audio.Channels = 2
	f.Chunker = chunker.DefaultConfig()
	f.Local = asrlocal.DefaultConfig()
	f.Budget = dispatch.DefaultLedgerConfig()
	f.RemoteASRProviders = []string{"groq", "openai"}
	f.SummarizeProviders = []string{"groq", "openai", "anthropic", "google"}
	f.StorePath = "meetcore.db"
	return f
}

// Load reads path as YAML, falling back to defaults for a missing file.
func Load(path string) (File, error) {
	f := DefaultFile()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// LoadProviders loads a .env file (if present) and reads provider API keys
// from the environment, mirroring cmd/agent/main.go's startup sequence.
func LoadProviders(envPath string) Providers {
	if envPath == "" {
		envPath = ".env"
	}
	_ = godotenv.Load(envPath)

	return Providers{
		GroqKey:       os.Getenv("GROQ_API_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GoogleKey:     os.Getenv("GOOGLE_API_KEY"),
		DeepgramKey:   os.Getenv("DEEPGRAM_API_KEY"),
		AssemblyAIKey: os.Getenv("ASSEMBLYAI_API_KEY"),
	}
}
