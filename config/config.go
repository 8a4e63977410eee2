package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/thisisjab/rulezilla/api"
	"github.com/thisisjab/rulezilla/engine"
	"github.com/thisisjab/rulezilla/processor"
	"github.com/thisisjab/rulezilla/rule"
	"github.com/thisisjab/rulezilla/source"
	"github.com/thisisjab/rulezilla/storage"
	"go.yaml.in/yaml/v3"
)

type Config struct {
	Logger                LoggerConfig      `yaml:"logger"`
	Storage               StorageConfig     `yaml:"storage"`
	Server                api.Config        `yaml:"server"`
	Processors            []ProcessorConfig `yaml:"processors"`
	Sources               []SourceConfig    `yaml:"sources"`
	Rules                 []RuleConfig      `yaml:"rules"`
	RecordsBufferSize     uint              `yaml:"records_buffer_size"`
	StorageFlushInterval  time.Duration     `yaml:"storage_flush_interval"`
	EvaluationsBufferSize uint              `yaml:"evaluations_buffer_size"`
	WorkersCount          uint              `yaml:"workers_count"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Output string `yaml:"output"`
}

type StorageConfig struct {
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

type ProcessorConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

type SourceConfig struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Processors []string `yaml:"processors"`
	Config     any      `yaml:"config"`
}

// RuleConfig defines a rule the engine evaluates every record against.
// Exactly one of Expression and Combine must be set. Combine holds rule
// strings that are joined into a single rule.
type RuleConfig struct {
	Name       string   `yaml:"name"`
	Expression string   `yaml:"expression"`
	Combine    []string `yaml:"combine"`
}

// ParseLogger creates the logger described by the logger section.
func (cfg Config) ParseLogger() (*slog.Logger, error) {
	return parseLoggerConfig(cfg.Logger)
}

// ParseStorage creates the storage backend described by the storage section.
// The returned storage is not connected yet.
func (cfg Config) ParseStorage() (storage.Storage, error) {
	return parseStorageConfig(cfg.Storage)
}

// ParseRules compiles every configured rule.
func (cfg Config) ParseRules() ([]engine.Rule, error) {
	rules := make([]engine.Rule, len(cfg.Rules))
	for i, rc := range cfg.Rules {
		r, err := parseRuleConfig(rc)
		if err != nil {
			return nil, fmt.Errorf("cannot create rule `%s`: %w", rc.Name, err)
		}
		rules[i] = r
	}

	return rules, nil
}

// ParseEngine builds the engine config. Evaluations are written to st.
func (cfg Config) ParseEngine(logger *slog.Logger, st engine.Storage) (*engine.Config, error) {
	processors := make(map[string]engine.RecordProcessor, len(cfg.Processors))
	for _, pc := range cfg.Processors {
		if _, ok := processors[pc.Name]; ok {
			return nil, fmt.Errorf("processor `%s` is defined more than once", pc.Name)
		}

		p, err := parseProcessorConfig(pc)
		if err != nil {
			return nil, fmt.Errorf("cannot create processor `%s`: %w", pc.Name, err)
		}
		processors[pc.Name] = p
	}

	sources := make(map[string]engine.RecordSource, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		if _, ok := sources[sc.Name]; ok {
			return nil, fmt.Errorf("source `%s` is defined more than once", sc.Name)
		}

		s, err := parseSourceConfig(logger, sc)
		if err != nil {
			return nil, fmt.Errorf("cannot create source `%s`: %w", sc.Name, err)
		}
		sources[sc.Name] = s
	}

	rules, err := cfg.ParseRules()
	if err != nil {
		return nil, err
	}

	return &engine.Config{
		RecordsBufferMaxSize:     cfg.RecordsBufferSize,
		StorageFlushInterval:     cfg.StorageFlushInterval,
		EvaluationsBufferMaxSize: cfg.EvaluationsBufferSize,
		WorkersCount:             cfg.WorkersCount,
		Storage:                  st,
		Processors:               processors,
		Sources:                  sources,
		Rules:                    rules,
	}, nil
}

func parseLoggerConfig(cfg LoggerConfig) (*slog.Logger, error) {
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var w io.Writer
	switch cfg.Output {
	case "stdout", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text", "":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, AddSource: true})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	return slog.New(handler), nil
}

func parseStorageConfig(cfg StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "memory":
		return storage.NewMemoryStorage(), nil

	case "clickhouse":
		var clickHouseConfig storage.ClickHouseStorageConfig

		if err := remarshal(cfg.Config, &clickHouseConfig); err != nil {
			return nil, fmt.Errorf("cannot parse clickhouse storage config: %w", err)
		}

		s, err := storage.NewClickHouseStorage(clickHouseConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create clickhouse storage: %w", err)
		}

		return s, nil

	default:
		return nil, fmt.Errorf("invalid storage type: %s", cfg.Type)
	}
}

func parseSourceConfig(logger *slog.Logger, cfg SourceConfig) (engine.RecordSource, error) {
	switch cfg.Type {
	case "file":
		var fileConfig source.FileRecordSourceConfig
		err := remarshal(cfg.Config, &fileConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create file source: %w", err)
		}

		fileConfig.Name = cfg.Name
		fileConfig.ProcessorNames = cfg.Processors

		s, err := source.NewFileRecordSource(logger, fileConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create file source: %w", err)
		}

		return s, nil
	default:
		return nil, fmt.Errorf("invalid record source type: %s", cfg.Type)
	}
}

func parseProcessorConfig(cfg ProcessorConfig) (engine.RecordProcessor, error) {
	switch cfg.Type {
	case "json":
		var jsonConfig processor.JsonRecordProcessorConfig
		err := remarshal(cfg.Config, &jsonConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create json processor: %w", err)
		}

		jsonConfig.Name = cfg.Name

		p, err := processor.NewJsonRecordProcessor(jsonConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create json processor: %w", err)
		}

		return p, nil
	case "lua":
		var luaConfig processor.LuaRecordProcessorConfig
		err := remarshal(cfg.Config, &luaConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create lua processor: %w", err)
		}

		luaConfig.Name = cfg.Name

		p, err := processor.NewLuaRecordProcessor(luaConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create lua processor: %w", err)
		}

		return p, nil
	default:
		return nil, fmt.Errorf("invalid record processor type: %s", cfg.Type)
	}
}

func parseRuleConfig(cfg RuleConfig) (engine.Rule, error) {
	if cfg.Name == "" {
		return engine.Rule{}, errors.New("rule name is required")
	}

	switch {
	case cfg.Expression != "" && len(cfg.Combine) > 0:
		return engine.Rule{}, errors.New("expression and combine cannot be used together")

	case cfg.Expression != "":
		node, err := rule.Create(cfg.Expression)
		if err != nil {
			return engine.Rule{}, err
		}
		return engine.Rule{Name: cfg.Name, Node: node}, nil

	case len(cfg.Combine) > 0:
		node, err := rule.Combine(cfg.Combine)
		if err != nil {
			return engine.Rule{}, err
		}
		return engine.Rule{Name: cfg.Name, Node: node}, nil

	default:
		return engine.Rule{}, errors.New("either expression or combine is required")
	}
}

// remarshal takes an input value, marshals it to YAML, and then unmarshals it into a new value of the same type.
// This is useful for converting generic interfaces (like map[string]any) into concrete struct types.
// The output parameter must be a pointer to the target type.
func remarshal(input any, output any) error {
	// Marshal the input to YAML
	yamlBytes, err := yaml.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}

	// Unmarshal the YAML into the output
	if err := yaml.Unmarshal(yamlBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}

	return nil
}
