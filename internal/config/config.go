package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

type Config struct {
	// RootDir anchors all relative paths. Defaults to ".".
	RootDir string `yaml:"root_dir,omitempty"`
	// TemplatesDir is where template JSON files live, relative to RootDir.
	TemplatesDir string `yaml:"templates_dir,omitempty"`
	// SQLitePath is the turn-history database consumed by the turns source.
	SQLitePath string       `yaml:"sqlite_path,omitempty"`
	Render     RenderConfig `yaml:"render,omitempty"`
	Audit      AuditConfig  `yaml:"audit,omitempty"`
	AI         AIConfig     `yaml:"ai,omitempty"`
}

// RenderConfig holds render defaults applied when flags are absent.
type RenderConfig struct {
	MaxTokens  int `yaml:"max_tokens,omitempty"`
	MaxHistory int `yaml:"max_history,omitempty"`
}

// AuditConfig controls the JSONL render-audit trail.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled,omitempty"`
	Dir           string `yaml:"dir,omitempty"`
	RetentionDays int    `yaml:"retention_days,omitempty"`
	FilePrefix    string `yaml:"file_prefix,omitempty"`
}

// AIConfig configures the optional submit step after rendering.
type AIConfig struct {
	Provider  string `yaml:"provider,omitempty"` // "openai" or "anthropic"
	APIKey    string `yaml:"api_key,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		RootDir:      ".",
		TemplatesDir: "templates",
		SQLitePath:   ".weave.db",
		Render: RenderConfig{
			MaxTokens:  8192,
			MaxHistory: 200,
		},
		Audit: AuditConfig{
			Dir:           ".weave/audit",
			RetentionDays: 7,
			FilePrefix:    "render",
		},
	}
}

func ConfigPath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".weave.yaml")
}

func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0600)
}

// ResolvePath anchors a relative path at the configured root.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	root := c.RootDir
	if root == "" {
		root = "."
	}
	return filepath.Join(root, p)
}
