package config

import "github.com/caarlos0/env/v11"

// Settings are the runtime settings of the shotcall CLI. Flags override them.
type Settings struct {
	ConfigPath  string `env:"SHOTCALL_CONFIG"`
	DBPath      string `env:"SHOTCALL_DB"`
	OutDir      string `env:"SHOTCALL_OUT_DIR"      envDefault:"results"`
	MetricsFile string `env:"SHOTCALL_METRICS_FILE"`
	AbortPolicy string `env:"SHOTCALL_ABORT_POLICY" envDefault:"discard"`
	Quiet       bool   `env:"SHOTCALL_QUIET"        envDefault:"false"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, err
	}
	return s, nil
}
