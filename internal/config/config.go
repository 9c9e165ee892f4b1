package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// EngineVersion is the version of the build engine. It is the version tag
// mixed into every build file hash and the upper bound checked against a
// workspace's required version.
const EngineVersion = "v0.4.0"

// FileNames lists the accepted workspace file names in lookup order.
var FileNames = []string{"WORKSPACE.toml", "WORKSPACE.yaml", "WORKSPACE.yml"}

// ErrUnsupportedFormat is returned for workspace files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported workspace file format")

// Config holds the settings of one workspace.
type Config struct {
	// Name is informational and shows up in logs.
	Name string `toml:"name" yaml:"name"`
	// Version is the minimum engine version the workspace needs.
	Version string `toml:"version" yaml:"version"`

	BuildFile    string `toml:"build_file" yaml:"build_file"`
	OutputFolder string `toml:"output_folder" yaml:"output_folder"`
	// OutputRoot is relative to the workspace root unless absolute.
	OutputRoot string   `toml:"output_root" yaml:"output_root"`
	Shell      []string `toml:"shell" yaml:"shell"`

	AllowWorkspacePaths bool `toml:"allow_workspace_paths" yaml:"allow_workspace_paths"`
	AllowAbsolutePaths  bool `toml:"allow_absolute_paths" yaml:"allow_absolute_paths"`
	LinkOutputs         bool `toml:"link_outputs" yaml:"link_outputs"`

	// Ignore holds file name globs skipped by glob/find expansion and copies.
	Ignore      []string          `toml:"ignore" yaml:"ignore"`
	Environment map[string]string `toml:"environment" yaml:"environment"`
	Workers     int               `toml:"workers" yaml:"workers"`
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		BuildFile:           "BUILD.hcl",
		OutputFolder:        "_output_",
		OutputRoot:          ".gridbuild",
		Shell:               []string{"/bin/bash"},
		AllowWorkspacePaths: true,
		AllowAbsolutePaths:  true,
		LinkOutputs:         true,
		Ignore:              []string{".git", ".gridbuild"},
		Workers:             8,
	}
}

// Load reads a workspace file, picking the decoder by extension, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("parsing %s: unknown key %q", filepath.Base(path), undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF, which just means "all defaults".
		if err := dec.Decode(&cfg); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return cfg, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
	default:
		return cfg, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Find walks up from dir looking for a workspace file. It returns the file
// path, or "" when none of the parents contain one.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Validate checks field values and the required engine version.
func (c Config) Validate() error {
	if c.Version != "" {
		if !semver.IsValid(c.Version) {
			return fmt.Errorf("version %q is not a valid semantic version", c.Version)
		}
		if semver.Compare(EngineVersion, c.Version) < 0 {
			return fmt.Errorf("workspace requires engine %s or newer, this is %s", c.Version, EngineVersion)
		}
	}
	if c.BuildFile == "" || strings.ContainsRune(c.BuildFile, '/') {
		return fmt.Errorf("build_file must be a plain file name, got %q", c.BuildFile)
	}
	if c.OutputFolder == "" || strings.ContainsAny(c.OutputFolder, `/\`) {
		return fmt.Errorf("output_folder must be a plain directory name, got %q", c.OutputFolder)
	}
	if c.OutputRoot == "" {
		return errors.New("output_root must not be empty")
	}
	if len(c.Shell) == 0 || c.Shell[0] == "" {
		return errors.New("shell must name a program")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	for _, pattern := range c.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("ignore pattern %q: %w", pattern, err)
		}
	}
	return nil
}
