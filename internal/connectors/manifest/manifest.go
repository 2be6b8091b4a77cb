// Package manifest reads YAML batch ingestion files.
//
// A manifest lists local paths and URLs with optional glob filters and
// chunking overrides:
//
//	chunking:
//	  chunk_size: 512
//	  overlap: 64
//	exclude: ["**/drafts/**"]
//	sources:
//	  - path: ./docs
//	    include: ["**/*.md", "**/*.pdf"]
//	  - url: https://example.com/handbook
//
// Relative paths resolve against the manifest's directory.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/weiranzhiqian/ThinkRAG/internal/connectors/filesystem"
	"github.com/weiranzhiqian/ThinkRAG/internal/connectors/web"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Manifest is a parsed batch file.
type Manifest struct {
	Chunking *Chunking `yaml:"chunking"`
	Include  []string  `yaml:"include"`
	Exclude  []string  `yaml:"exclude"`
	Sources  []Source  `yaml:"sources"`

	baseDir string
}

// Chunking overrides the configured chunking. Zero fields keep the default.
type Chunking struct {
	ChunkSize int  `yaml:"chunk_size"`
	Overlap   *int `yaml:"overlap"`
}

// Source is one path or URL entry.
type Source struct {
	Path      string   `yaml:"path"`
	URL       string   `yaml:"url"`
	Include   []string `yaml:"include"`
	Exclude   []string `yaml:"exclude"`
	NoRecurse bool     `yaml:"no_recurse"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return Parse(data, abs)
}

// Parse decodes manifest YAML. Unknown keys are rejected.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", domain.ErrInvalidConfig, err)
	}
	m.baseDir = baseDir
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("%w: manifest has no sources", domain.ErrInvalidConfig)
	}
	var errs []error
	for i, s := range m.Sources {
		switch {
		case s.Path == "" && s.URL == "":
			errs = append(errs, fmt.Errorf("source %d: path or url required", i+1))
		case s.Path != "" && s.URL != "":
			errs = append(errs, fmt.Errorf("source %d: path and url are exclusive", i+1))
		case s.URL != "":
			if err := web.ValidateURL(s.URL); err != nil {
				errs = append(errs, fmt.Errorf("source %d: %w", i+1, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return nil
}

// ChunkingConfig applies the manifest overrides to base.
func (m *Manifest) ChunkingConfig(base domain.ChunkingConfig) domain.ChunkingConfig {
	if m.Chunking == nil {
		return base
	}
	if m.Chunking.ChunkSize > 0 {
		base.ChunkSize = m.Chunking.ChunkSize
	}
	if m.Chunking.Overlap != nil {
		base.Overlap = *m.Chunking.Overlap
	}
	return base
}

// Connectors returns a connector per path source and one web connector
// for all URL sources. Source filters extend the top level ones.
func (m *Manifest) Connectors(base filesystem.Options, webCfg web.Config) []driven.Connector {
	var (
		out  []driven.Connector
		urls []string
	)
	for _, s := range m.Sources {
		if s.URL != "" {
			urls = append(urls, s.URL)
			continue
		}
		opts := base
		opts.Include = concat(base.Include, m.Include, s.Include)
		opts.Exclude = concat(base.Exclude, m.Exclude, s.Exclude)
		opts.NoRecurse = s.NoRecurse
		out = append(out, filesystem.New(m.resolve(s.Path), opts))
	}
	if len(urls) > 0 {
		out = append(out, web.New(urls, webCfg))
	}
	return out
}

// Paths returns the resolved local paths in order.
func (m *Manifest) Paths() []string {
	var out []string
	for _, s := range m.Sources {
		if s.Path != "" {
			out = append(out, m.resolve(s.Path))
		}
	}
	return out
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.baseDir == "" {
		return p
	}
	return filepath.Join(m.baseDir, p)
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
