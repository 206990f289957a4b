// Package config loads the YAML run configuration a driver needs to point
// the interpreter at a codedb and turn on its analysis-mode flags (spec
// §6.3), adapted from the teacher's pkg/driver manifest loader.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corewall/hackscan/pkg/interp"
)

// Config is the parsed contents of a run's YAML configuration file.
type Config struct {
	Path string

	// EntryPaths are the fixture files (decoded by pkg/codedb) making up the
	// codedb for this run. At least one is required unless CorpusRepo is set.
	EntryPaths []string

	// Strict, ExtractPaths, MaxDepth, and TaintMode map directly onto
	// interp.Options (spec §6.3).
	Strict       bool
	ExtractPaths bool
	MaxDepth     int
	TaintMode    bool

	// CorpusRepo and CorpusRef, when set, name a git-hosted fixture corpus
	// (pkg/corpus) to fetch; the CLI adds its fixture files to EntryPaths.
	CorpusRepo string
	CorpusRef  string
	CorpusDir  string
}

// ValidationError aggregates configuration validation failures, matching the
// teacher's driver.ValidationError shape.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// Load parses a run configuration from path, returning a validated Config.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw configFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: %s is empty", absPath)
		}
		return nil, fmt.Errorf("config: parse %s: %w", absPath, err)
	}

	cfg := raw.toConfig(absPath)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs ValidationError
	if len(c.EntryPaths) == 0 && c.CorpusRepo == "" {
		errs.Issues = append(errs.Issues, "entry_paths must name at least one fixture, or corpus.repo must be set")
	}
	for i, p := range c.EntryPaths {
		if strings.TrimSpace(p) == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("entry_paths[%d] must be a non-empty string", i))
		}
	}
	if c.MaxDepth < 0 {
		errs.Issues = append(errs.Issues, "max_depth must not be negative")
	}
	if c.CorpusRepo == "" && c.CorpusRef != "" {
		errs.Issues = append(errs.Issues, "corpus.ref requires corpus.repo")
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// Options converts Config's analysis-mode fields into interp.Options, filling
// in interp.DefaultMaxDepth when MaxDepth was left unset (spec §6.3).
func (c *Config) Options() interp.Options {
	maxDepth := c.MaxDepth
	if maxDepth == 0 {
		maxDepth = interp.DefaultMaxDepth
	}
	return interp.Options{
		Strict:       c.Strict,
		ExtractPaths: c.ExtractPaths,
		MaxDepth:     maxDepth,
		TaintMode:    c.TaintMode,
	}
}

type configFile struct {
	EntryPaths   stringList `yaml:"entry_paths"`
	Strict       bool       `yaml:"strict"`
	ExtractPaths bool       `yaml:"extract_paths"`
	MaxDepth     int        `yaml:"max_depth"`
	TaintMode    bool       `yaml:"taint_mode"`
	Corpus       *corpusYAML `yaml:"corpus"`
}

type corpusYAML struct {
	Repo string `yaml:"repo"`
	Ref  string `yaml:"ref"`
	Dir  string `yaml:"dir"`
}

type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = stringList{strings.TrimSpace(value.Value)}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			var s string
			if err := node.Decode(&s); err != nil {
				return err
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			items = append(items, s)
		}
		*l = stringList(items)
		return nil
	case 0:
		*l = nil
		return nil
	default:
		return fmt.Errorf("config: expected string or sequence for entry_paths but found %s", value.ShortTag())
	}
}

func (cf configFile) toConfig(path string) *Config {
	cfg := &Config{
		Path:         path,
		EntryPaths:   append([]string{}, cf.EntryPaths...),
		Strict:       cf.Strict,
		ExtractPaths: cf.ExtractPaths,
		MaxDepth:     cf.MaxDepth,
		TaintMode:    cf.TaintMode,
	}
	if cf.Corpus != nil {
		cfg.CorpusRepo = strings.TrimSpace(cf.Corpus.Repo)
		cfg.CorpusRef = strings.TrimSpace(cf.Corpus.Ref)
		cfg.CorpusDir = strings.TrimSpace(cf.Corpus.Dir)
	}
	return cfg
}
