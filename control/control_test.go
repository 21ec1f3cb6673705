// control/control_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"os"
	"sync"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"MODHOST_MODULE_DIR", "MODHOST_WORKERS", "MODHOST_DEBUG_SIGNAL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := DefaultConfig()
	if cfg.ModuleDir != def.ModuleDir || cfg.Workers != def.Workers || cfg.DebugSignal != def.DebugSignal {
		t.Errorf("got %+v, want %+v", cfg, def)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MODHOST_MODULE_DIR", "/srv/modules")
	t.Setenv("MODHOST_WORKERS", "16")
	t.Setenv("MODHOST_DEBUG_SIGNAL", "false")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ModuleDir != "/srv/modules" || cfg.Workers != 16 || cfg.DebugSignal {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigRejectsBadWorkers(t *testing.T) {
	t.Setenv("MODHOST_WORKERS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for zero workers")
	}
	t.Setenv("MODHOST_WORKERS", "many")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMetricsConcurrentAdd(t *testing.T) {
	m := NewMetrics()
	if !m.Updated().IsZero() {
		t.Fatal("fresh registry reports an update time")
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc("accepted")
			}
		}()
	}
	wg.Wait()
	m.Add("bytes", 42)

	if got := m.Get("accepted"); got != 8000 {
		t.Errorf("accepted = %d", got)
	}
	snap := m.Snapshot()
	if snap["bytes"] != 42 || snap["accepted"] != 8000 {
		t.Errorf("snapshot = %v", snap)
	}
	if m.Get("missing") != 0 {
		t.Error("missing counter is non-zero")
	}
	if m.Updated().IsZero() {
		t.Error("update time not recorded")
	}
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterRuntimeProbes(dp)
	dp.RegisterProbe("answer", func() any { return 42 })

	state := dp.DumpState()
	if state["answer"] != 42 {
		t.Errorf("answer = %v", state["answer"])
	}
	if n, ok := state["runtime.cpus"].(int); !ok || n <= 0 {
		t.Errorf("runtime.cpus = %v", state["runtime.cpus"])
	}
	names := dp.Names()
	if len(names) != 3 || names[0] != "answer" {
		t.Errorf("names = %v", names)
	}
}
