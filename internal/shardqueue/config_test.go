package shardqueue

import (
	"testing"
)

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DOCUPILOT_QUEUE_SHARDS", "8")
	t.Setenv("DOCUPILOT_QUEUE_QUEUE_SIZE", "256")
	t.Setenv("DOCUPILOT_QUEUE_ENQUEUE_TIMEOUT", "250ms")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Shards != 8 || cfg.QueueSize != 256 {
		t.Fatalf("unexpected Shards/QueueSize: %+v", cfg)
	}
	if cfg.EnqueueTimeout.String() != "250ms" {
		t.Fatalf("unexpected EnqueueTimeout: %v", cfg.EnqueueTimeout)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Shards != 4 || cfg.QueueSize != 128 || cfg.EnqueueTimeout.String() != "100ms" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
