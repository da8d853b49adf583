package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	jsonParser "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// LoadModelConfig reads a model config from path in two layers:
// defaults from a zero-value ModelConfig merged with the on-disk JSON
// object, then unmarshalled. A fresh koanf instance is used per call so
// concurrent loads (tests, re-init) never share mutable state.
//
// Unmarshalling uses ErrorUnused so a model config file naming a field
// that doesn't exist on ModelConfig (or a nested FanConfiguration,
// TemperatureThreshold, etc.) is rejected instead of silently dropped.
func LoadModelConfig(path string) (*ModelConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(ModelConfig{}, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load model config defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), jsonParser.Parser()); err != nil {
		return nil, fmt.Errorf("read model config %s: %w", path, err)
	}

	var cfg ModelConfig
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parse model config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate model config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadServiceConfig reads a service config from path. A missing file
// is not an error: the daemon starts with an empty ServiceConfig
// (every fan in auto mode, no model selected yet).
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("stat service config %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), jsonParser.Parser()); err != nil {
		return nil, fmt.Errorf("read service config %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parse service config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveServiceConfig marshals cfg and writes it to path atomically via
// ServiceConfig.WriteAtomic.
func SaveServiceConfig(path string, cfg *ServiceConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal service config: %w", err)
	}
	if err := cfg.WriteAtomic(path, data); err != nil {
		return fmt.Errorf("write service config %s: %w", path, err)
	}
	return nil
}
