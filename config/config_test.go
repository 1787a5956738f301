package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"streakEngine/services/betService"
)

func TestLoadInsuranceTable(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	t.Run("defaults without a path", func(t *testing.T) {
		table, err := LoadInsuranceTable("")
		if err != nil {
			t.Fatal(err)
		}
		if got := table.InsuranceCost(4, 10); got != 3 {
			t.Errorf("default cost = %d, want 3", got)
		}
	})

	t.Run("override from file", func(t *testing.T) {
		p := write("custom.yaml", `
base_cost:
  4: 4
  5: 6
brackets:
  - min: 20
    multiplier: 2
  - min: 0
    multiplier: 1
`)
		table, err := LoadInsuranceTable(p)
		if err != nil {
			t.Fatal(err)
		}
		if got := table.InsuranceCost(4, 10); got != 4 {
			t.Errorf("cost at 10 = %d, want 4", got)
		}
		if got := table.InsuranceCost(5, 20); got != 12 {
			t.Errorf("cost at 20 = %d, want 12", got)
		}
	})

	t.Run("partial file keeps default brackets", func(t *testing.T) {
		p := write("partial.yaml", "base_cost:\n  4: 10\n  5: 20\n")
		table, err := LoadInsuranceTable(p)
		if err != nil {
			t.Fatal(err)
		}
		if got := table.InsuranceCost(4, 50); got != 30 {
			t.Errorf("cost = %d, want 30", got)
		}
	})

	t.Run("shipped table", func(t *testing.T) {
		table, err := LoadInsuranceTable("insurance.yaml")
		if err != nil {
			t.Fatal(err)
		}
		if got := table.InsuranceCost(5, 20); got != 8 {
			t.Errorf("cost = %d, want 8", got)
		}
	})

	t.Run("invalid table", func(t *testing.T) {
		p := write("bad.yaml", "brackets:\n  - min: 5\n    multiplier: 1\n")
		if _, err := LoadInsuranceTable(p); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadInsuranceTable(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Error("expected read error")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		p := write("broken.yaml", "base_cost: [oops")
		if _, err := LoadInsuranceTable(p); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite:/tmp/streak.db")
	t.Setenv("RETRY_BUDGET", "7")
	t.Setenv("RETRY_INITIAL_INTERVAL", "50ms")
	t.Setenv("MAX_LANES", "16")
	t.Setenv("NOTIFY_QUEUE_SIZE", "64")
	t.Setenv("PUSH_POLICY", "void_leg")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("INSURANCE_TABLE_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseURL != "sqlite:/tmp/streak.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.RetryBudget != 7 || cfg.RetryInitialInterval != 50*time.Millisecond || cfg.MaxLanes != 16 {
		t.Errorf("retry settings = %d %v %d", cfg.RetryBudget, cfg.RetryInitialInterval, cfg.MaxLanes)
	}
	if cfg.NotifyQueueSize != 64 {
		t.Errorf("NotifyQueueSize = %d", cfg.NotifyQueueSize)
	}
	if cfg.PushPolicy != betService.PushVoidsLeg {
		t.Errorf("PushPolicy = %q", cfg.PushPolicy)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"RETRY_BUDGET", "0"},
		{"RETRY_BUDGET", "many"},
		{"RETRY_MAX_INTERVAL", "soon"},
		{"PUSH_POLICY", "refund"},
		{"DISCORD_RATE_PER_SECOND", "fast"},
		{"NOTIFY_QUEUE_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("INSURANCE_TABLE_PATH", "")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
