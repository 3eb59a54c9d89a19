package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

type HeapstoreConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir   string `mapstructure:"workdir"`
		PoolPages int    `mapstructure:"pool_pages"`
	} `mapstructure:"storage"`
}

// LoadConfig reads the YAML config at path. An empty path yields the
// defaults.
func LoadConfig(path string) (*HeapstoreConfig, error) {
	v := viper.New()

	v.SetDefault("app_name", "heapstore")
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("storage.pool_pages", 128)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg HeapstoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
