// File: cmd/modhost/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// modhost loads every handler module found in a directory, serves each on the
// port it requests and runs until SIGINT or SIGTERM. SIGUSR1 dumps runtime state.

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/momentics/hioload-modhost/control"
	"github.com/momentics/hioload-modhost/host"
	"github.com/momentics/hioload-modhost/registry"
)

func main() {
	cfg, err := control.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	flag.StringVar(&cfg.ModuleDir, "modules", cfg.ModuleDir, "directory of handler modules")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker pool size per module")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	modules, err := registry.Discover(cfg.ModuleDir)
	if err != nil {
		log.Fatalf("Failed to load modules: %v", err)
	}
	if len(modules) == 0 {
		log.Printf("no modules found in %s", cfg.ModuleDir)
	}

	h := host.New(modules, host.WithWorkers(cfg.Workers))
	if err := h.Start(); err != nil {
		log.Fatalf("Failed to start host: %v", err)
	}

	probes := control.NewDebugProbes()
	control.RegisterRuntimeProbes(probes)
	h.RegisterProbes(probes)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	if cfg.DebugSignal {
		signal.Notify(sigCh, syscall.SIGUSR1)
	}

	for sig := range sigCh {
		if sig == syscall.SIGUSR1 {
			dumpState(probes)
			continue
		}
		log.Printf("%v received, shutting down", sig)
		break
	}

	if err := h.Stop(); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Shutdown complete.")
}

func dumpState(dp *control.DebugProbes) {
	state := dp.DumpState()
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Printf("state %s = %v", k, state[k])
	}
}
