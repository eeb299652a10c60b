package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto configuration keys: DIGITNORM_SERVER_PORT sets server.port.
const EnvPrefix = "DIGITNORM_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Server     ServerConfig     `koanf:"server"`
}

type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error disabled"`
	JSON   bool   `koanf:"json"`
	Source bool   `koanf:"source"`
}

type PipelineConfig struct {
	Invert       string `koanf:"invert"         validate:"oneof=auto always never true false"`
	MinInkPixels int    `koanf:"min_ink_pixels" validate:"gte=0"`
	Concurrency  int    `koanf:"concurrency"    validate:"gte=1,lte=256"`
}

type ClassifierConfig struct {
	Backend     string        `koanf:"backend"      validate:"oneof=heuristic remote onnx"`
	URL         string        `koanf:"url"          validate:"omitempty,url"`
	Timeout     time.Duration `koanf:"timeout"      validate:"gt=0"`
	Retries     int           `koanf:"retries"      validate:"gte=0,lte=10"`
	ModelPath   string        `koanf:"model_path"   validate:"required_if=Backend onnx"`
	RuntimePath string        `koanf:"runtime_path"`
	InputLayout string        `koanf:"input_layout" validate:"oneof=flat image"`
}

type ServerConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"             validate:"gte=1,lte=65535"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes" validate:"gt=0"`
	CORS           bool   `koanf:"cors"`
	StageUploads   bool   `koanf:"stage_uploads"`
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Pipeline: PipelineConfig{
			Invert:       "auto",
			MinInkPixels: 30,
			Concurrency:  4,
		},
		Classifier: ClassifierConfig{
			Backend:     "heuristic",
			URL:         "http://localhost:5000",
			Timeout:     10 * time.Second,
			Retries:     0,
			InputLayout: "flat",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxUploadBytes: 10 << 20,
			CORS:           true,
		},
	}
}

// Load builds the configuration from defaults, then environment variables,
// then overrides (typically command line flags keyed by config path).
func Load(overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	known := make(map[string]bool)
	for _, key := range k.Keys() {
		known[key] = true
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			path := transformEnvKey(strings.TrimPrefix(key, EnvPrefix))
			if !known[path] {
				return "", nil
			}
			return path, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for key, value := range overrides {
		if !known[key] {
			return nil, fmt.Errorf("unknown configuration key %q", key)
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.Classifier.Backend == "remote" && cfg.Classifier.URL == "" {
		return fmt.Errorf("configuration validation failed: classifier.url is required for the remote backend")
	}
	return nil
}

// transformEnvKey maps SECTION_FIELD_NAME to section.field_name.
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_'
	})
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + "." + strings.Join(parts[1:], "_")
	}
}
