// Package config loads and saves the YAML-backed runtime configuration:
// fabric hostnames and pacing knobs, the proxy pool, and packaging options.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimeoutSeconds    = 30
	defaultAntiBanInterval   = 100
	defaultAntiBanPauseSecs  = 30
	defaultMaxRetries        = 3
	defaultMaxRateLimitRetry = 5
	defaultInterChapterDelay = 500
	defaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	defaultPrimaryHosts = []string{"docln.net", "ln.hako.vn", "docln.sbs"}
	defaultImageHosts   = []string{"img.docln.net", "i.docln.net", "st.docln.net", "cdn.hako.vn", "i2.docln.net"}
)

// Fabric configures the Network Fabric: the interchangeable hostname lists,
// static headers, per-request timeout, and the anti-ban / retry budgets.
type Fabric struct {
	PrimaryHosts      []string `yaml:"primary_hosts"`
	ImageHosts        []string `yaml:"image_hosts"`
	UserAgent         string   `yaml:"user_agent"`
	Referer           string   `yaml:"referer"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	AntiBanInterval   int      `yaml:"anti_ban_interval"`
	AntiBanPauseSecs  int      `yaml:"anti_ban_pause_seconds"`
	MaxRetries        int      `yaml:"max_retries"`
	MaxRateLimitRetry int      `yaml:"max_rate_limit_retries"`
}

type Downloader struct {
	BaseDir             string `yaml:"base_dir"`
	InterChapterDelayMs int    `yaml:"inter_chapter_delay_ms"`
}

type Packager struct {
	CompressImages bool   `yaml:"compress_images"`
	OutputDir      string `yaml:"output_dir"`
}

type Config struct {
	Fabric     Fabric     `yaml:"fabric"`
	Proxies    []string   `yaml:"proxies"`
	Downloader Downloader `yaml:"downloader"`
	Packager   Packager   `yaml:"packager"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Default returns a Config populated entirely with defaults, for first-run
// bootstrap before any file exists on disk.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if len(cfg.Fabric.PrimaryHosts) == 0 {
		cfg.Fabric.PrimaryHosts = append([]string{}, defaultPrimaryHosts...)
	}
	if len(cfg.Fabric.ImageHosts) == 0 {
		cfg.Fabric.ImageHosts = append([]string{}, defaultImageHosts...)
	}
	if cfg.Fabric.UserAgent == "" {
		cfg.Fabric.UserAgent = defaultUserAgent
	}
	if cfg.Fabric.Referer == "" && len(cfg.Fabric.PrimaryHosts) > 0 {
		cfg.Fabric.Referer = "https://" + cfg.Fabric.PrimaryHosts[0]
	}
	if cfg.Fabric.TimeoutSeconds == 0 {
		cfg.Fabric.TimeoutSeconds = defaultTimeoutSeconds
	}
	if cfg.Fabric.AntiBanInterval == 0 {
		cfg.Fabric.AntiBanInterval = defaultAntiBanInterval
	}
	if cfg.Fabric.AntiBanPauseSecs == 0 {
		cfg.Fabric.AntiBanPauseSecs = defaultAntiBanPauseSecs
	}
	if cfg.Fabric.MaxRetries == 0 {
		cfg.Fabric.MaxRetries = defaultMaxRetries
	}
	if cfg.Fabric.MaxRateLimitRetry == 0 {
		cfg.Fabric.MaxRateLimitRetry = defaultMaxRateLimitRetry
	}
	if cfg.Downloader.InterChapterDelayMs == 0 {
		cfg.Downloader.InterChapterDelayMs = defaultInterChapterDelay
	}
}
