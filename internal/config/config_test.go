package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("port = %s, want 3000", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %s", cfg.Redis.Addr)
	}
	if cfg.Tools.DemucsModel != "htdemucs_6s" {
		t.Errorf("demucs model = %s", cfg.Tools.DemucsModel)
	}
	if cfg.Jobs.Concurrency < 1 {
		t.Errorf("concurrency = %d, want >= 1", cfg.Jobs.Concurrency)
	}
	if cfg.Jobs.Retention() != 0 {
		t.Errorf("default retention = %v, want 0", cfg.Jobs.Retention())
	}
	if cfg.Auth.Secret != "" {
		t.Errorf("auth enabled by default")
	}
}
