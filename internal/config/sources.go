package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SourceSpec 数据源种子配置
type SourceSpec struct {
	Name            string         `mapstructure:"name"`
	RefreshInterval time.Duration  `mapstructure:"refresh_interval"`
	Payload         map[string]any `mapstructure:"payload"`
}

type sourcesFile struct {
	Sources []SourceSpec `mapstructure:"sources"`
}

// LoadSources 读取数据源种子文件（YAML/TOML/JSON，按扩展名识别）
func LoadSources(path string) ([]SourceSpec, error) {
	if path == "" {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var f sourcesFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Sources))
	for i, s := range f.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("sources[%d]: name is required", i)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		if s.RefreshInterval < 0 {
			return nil, fmt.Errorf("sources[%d]: refresh_interval must not be negative", i)
		}
		seen[s.Name] = struct{}{}
	}
	return f.Sources, nil
}
