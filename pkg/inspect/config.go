package inspect

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Offset      int64  `yaml:"offset"`
	Concurrency int    `yaml:"concurrency"`
	CacheSize   int    `yaml:"cache_size" category:"advanced"`
	SkipNotes   bool   `yaml:"skip_notes"`
	Output      string `yaml:"output"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.Int64Var(&cfg.Offset, "inspect.offset", 0, "Byte offset of the ELF object inside each file.")
	f.IntVar(&cfg.Concurrency, "inspect.concurrency", 4, "Maximum number of files parsed concurrently.")
	f.IntVar(&cfg.CacheSize, "inspect.cache-size", 128, "Number of parse results kept for files with identical contents. 0 disables the cache.")
	f.BoolVar(&cfg.SkipNotes, "inspect.skip-notes", false, "Do not decode note segments.")
	f.StringVar(&cfg.Output, "inspect.output", string(FormatConsole), "Output format: console, json, yaml, table or tree.")
}

func (cfg *Config) Validate() error {
	if cfg.Offset < 0 {
		return fmt.Errorf("invalid offset %d, must not be negative", cfg.Offset)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency value %d, must be positive", cfg.Concurrency)
	}
	if cfg.CacheSize < 0 {
		return fmt.Errorf("invalid cache-size value %d, must not be negative", cfg.CacheSize)
	}
	if _, err := ParseFormat(cfg.Output); err != nil {
		return err
	}
	return nil
}

// DefaultConfig returns a Config holding the flag defaults.
func DefaultConfig() Config {
	var cfg Config
	fs := flag.NewFlagSet("", flag.PanicOnError)
	cfg.RegisterFlags(fs)
	return cfg
}

// LoadConfig overlays the YAML file at path onto cfg. Unknown keys are an
// error.
func LoadConfig(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}
