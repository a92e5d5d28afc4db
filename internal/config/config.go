package config

import (
	"os"
	"runtime"

	"gopkg.in/yaml.v2"
)

type Config struct {
	// DataDir is the directory the datastore manager owns. Each datastore
	// lives in a subdirectory named after it.
	DataDir string `yaml:"data_dir"`

	Events      EventsConfig      `yaml:"events"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Cache       CacheConfig       `yaml:"cache"`
	Log         LogConfig         `yaml:"log"`
}

type EventsConfig struct {
	// Workers bounds concurrent event deliveries (0 = NumCPU).
	Workers int `yaml:"workers"`
}

type AttachmentsConfig struct {
	// ChunkSizeKB is the copy buffer used while staging attachment streams.
	// Staging checks for cancellation between chunks.
	ChunkSizeKB int `yaml:"chunk_size_kb"`
}

type CacheConfig struct {
	// TreeCacheSize is the number of per-document revision trees kept in
	// the LRU cache of each open datastore.
	TreeCacheSize int `yaml:"tree_cache_size"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Events: EventsConfig{
			Workers: runtime.NumCPU(),
		},
		Attachments: AttachmentsConfig{
			ChunkSizeKB: 64,
		},
		Cache: CacheConfig{
			TreeCacheSize: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults. Fields absent from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
