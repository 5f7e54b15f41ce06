package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadRoundtrip(t *testing.T) {
	tdir := t.TempDir()
	path := filepath.Join(tdir, "config.yaml")

	cfg := Default()
	cfg.Proxies = []string{"http://p1:8080", "socks5://p2:1080"}
	cfg.Downloader.BaseDir = filepath.Join(tdir, "novel")
	cfg.Packager.CompressImages = true
	cfg.Packager.OutputDir = filepath.Join(tdir, "out")

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("missing file: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Proxies) != 2 || got.Proxies[0] != "http://p1:8080" {
		t.Fatalf("proxies mismatch: %+v", got.Proxies)
	}
	if got.Downloader.BaseDir != cfg.Downloader.BaseDir {
		t.Fatalf("downloader mismatch: %+v", got.Downloader)
	}
	if !got.Packager.CompressImages || got.Packager.OutputDir != cfg.Packager.OutputDir {
		t.Fatalf("packager mismatch: %+v", got.Packager)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	tdir := t.TempDir()
	path := filepath.Join(tdir, "config.yaml")
	if err := os.WriteFile(path, []byte("proxies: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Fabric.PrimaryHosts) != 3 {
		t.Fatalf("want 3 default primary hosts, got %+v", cfg.Fabric.PrimaryHosts)
	}
	if len(cfg.Fabric.ImageHosts) != 5 {
		t.Fatalf("want 5 default image hosts, got %+v", cfg.Fabric.ImageHosts)
	}
	if cfg.Fabric.TimeoutSeconds != 30 || cfg.Fabric.AntiBanInterval != 100 ||
		cfg.Fabric.AntiBanPauseSecs != 30 || cfg.Fabric.MaxRetries != 3 ||
		cfg.Fabric.MaxRateLimitRetry != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg.Fabric)
	}
	if cfg.Downloader.InterChapterDelayMs != 500 {
		t.Fatalf("want default inter-chapter delay 500ms, got %d", cfg.Downloader.InterChapterDelayMs)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Fabric.UserAgent == "" {
		t.Fatalf("want non-empty default user agent")
	}
	if cfg.Fabric.Referer != "https://docln.net" {
		t.Fatalf("want referer defaulted to first primary host, got %q", cfg.Fabric.Referer)
	}
}
