package conf

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	z "github.com/Oudwins/zog"

	"docpipe/internals/version"
)

type Config struct {
	Version    string           `json:"-"`
	Server     ServerConfig     `json:"server"`
	Queue      QueueConfig      `json:"queue"`
	Worker     WorkerConfig     `json:"worker"`
	Outcomes   OutcomesConfig   `json:"outcomes"`
	Workflows  WorkflowsConfig  `json:"workflows"`
	Extraction ExtractionConfig `json:"extraction"`
	Knowledge  KnowledgeConfig  `json:"knowledge"`
	Generation GenerationConfig `json:"generation"`
}

type ServerConfig struct {
	DataDir string `json:"data_dir"`
}

type QueueConfig struct {
	Name string `json:"name"`
	// PollInterval and RetryDelay are seconds.
	PollInterval int `json:"poll_interval"`
	RetryDelay   int `json:"retry_delay"`
	RetryMax     int `json:"retry_max"`
}

type WorkerConfig struct {
	Count int `json:"count"`
}

type OutcomesConfig struct {
	Backend OutcomeBackendID `json:"backend"`
}

type WorkflowsConfig struct {
	Dir string `json:"dir"`
}

type ExtractionConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

type KnowledgeConfig struct {
	URL  string `json:"url"`
	TopK int    `json:"top_k"`
}

type GenerationConfig struct {
	URL      string `json:"url"`
	RetryMax int    `json:"retry_max"`
}

var serverSchema = z.Struct(z.Shape{
	"DataDir": z.String().Default("~/.docpipe").Transform(expandPathTransform),
})

var queueSchema = z.Struct(z.Shape{
	"Name":         z.String().Default("task_queue"),
	"PollInterval": z.Int().Default(5).GT(0),
	"RetryDelay":   z.Int().Default(10).GTE(0),
	"RetryMax":     z.Int().Default(3).GTE(0),
})

var workerSchema = z.Struct(z.Shape{
	"Count": z.Int().Default(1).GT(0),
})

var outcomesSchema = z.Struct(z.Shape{
	"Backend": OutcomeBackendIDSchema,
})

var workflowsSchema = z.Struct(z.Shape{
	"Dir": z.String().Default("~/.docpipe/workflows").Transform(expandPathTransform),
})

var extractionSchema = z.Struct(z.Shape{
	"ChunkSize":    z.Int().Default(1000).GT(0),
	"ChunkOverlap": z.Int().Default(100).GTE(0),
})

var knowledgeSchema = z.Struct(z.Shape{
	"URL":  z.String().Default("http://localhost:8081"),
	"TopK": z.Int().Default(5).GT(0),
})

var generationSchema = z.Struct(z.Shape{
	"URL":      z.String().Default("http://localhost:8082"),
	"RetryMax": z.Int().Default(2).GTE(0),
})

var ConfigSchema = z.Struct(z.Shape{
	"server":     serverSchema,
	"queue":      queueSchema,
	"worker":     workerSchema,
	"outcomes":   outcomesSchema,
	"workflows":  workflowsSchema,
	"extraction": extractionSchema,
	"knowledge":  knowledgeSchema,
	"generation": generationSchema,
})

var config *Config

// GetConfig loads <data_dir>/docpipe.json on first call, falling back to
// the schema defaults when the file is absent or empty.
func GetConfig() *Config {
	if config == nil {
		defaults := &Config{}
		if err := ConfigSchema.Parse(map[string]any{}, defaults); err != nil {
			log.Fatal("[docpipe] Failed to parse config defaults ", err)
		}
		defaults.Version = version.Version()

		configPath := filepath.Join(filepath.Clean(defaults.Server.DataDir), "docpipe.json")
		data, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				config = defaults
				return config
			}
			log.Fatal("[docpipe] Failed to read config file ", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			config = defaults
			return config
		}

		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Fatal("[docpipe] Failed to parse config file ", err)
		}
		parsed := &Config{}
		if err := ConfigSchema.Parse(payload, parsed); err != nil {
			log.Fatal("[docpipe] Failed to parse config ", err)
		}
		parsed.Version = defaults.Version
		config = parsed
	}

	return config
}

func expandPathTransform(ptr *string, c z.Ctx) error {
	expanded, err := expandPath(*ptr)
	*ptr = expanded
	return err
}

func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}
