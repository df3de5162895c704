package integrate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-provenance/datalog/provenance"
)

// Config is the file form of a context's settings
type Config struct {
	// Provenance is one of "unit", "minmaxprob" or "topkproofs"
	Provenance string `yaml:"provenance"`
	// K is the number of proofs kept by topkproofs
	K int `yaml:"k"`
	// Disjunctions makes exclusive facts mutually exclusive under topkproofs
	Disjunctions bool `yaml:"disjunctions"`

	Incremental   bool `yaml:"incremental"`
	Workers       int  `yaml:"workers"`
	MaxIterations int  `yaml:"max_iterations"`

	// FactLog is a directory holding the durable fact journal. Empty keeps
	// facts in memory only.
	FactLog string `yaml:"fact_log"`
}

// DefaultConfig returns the settings used when no file is given
func DefaultConfig() Config {
	return Config{
		Provenance: "unit",
		K:          3,
		Workers:    1,
	}
}

// ParseConfig reads a YAML document. Missing fields keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// Validate checks the provenance name and numeric bounds
func (c Config) Validate() error {
	switch c.Provenance {
	case "unit", "minmaxprob", "topkproofs":
	default:
		return fmt.Errorf("unknown provenance %q (want unit, minmaxprob or topkproofs)", c.Provenance)
	}
	if c.Provenance == "topkproofs" && c.K <= 0 {
		return fmt.Errorf("topkproofs needs k > 0, got %d", c.K)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative, got %d", c.MaxIterations)
	}
	return nil
}

// Options converts the evaluation settings into context options
func (c Config) Options() []Option {
	return []Option{
		WithWorkers(c.Workers),
		WithMaxIterations(c.MaxIterations),
	}
}

// TopKProofs builds the topkproofs strategy described by the config
func (c Config) TopKProofs() *provenance.TopKProofs {
	return provenance.NewTopKProofs(c.K, c.Disjunctions)
}
