// File: registry/registry_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"plugin"
	"testing"

	"github.com/momentics/hioload-modhost/api"
)

// fakeTable serves symbols from a map.
type fakeTable map[string]plugin.Symbol

func (f fakeTable) Lookup(name string) (plugin.Symbol, error) {
	sym, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("plugin: symbol %s not found", name)
	}
	return sym, nil
}

func wellFormed(port int32, unloadStatus int32) fakeTable {
	return fakeTable{
		SymbolLoad:   func() int32 { return port },
		SymbolWork:   func(item *api.WorkItem) { _ = item.Close() },
		SymbolUnload: func() int32 { return unloadStatus },
	}
}

// moduleDir creates one empty file per name in a fresh directory.
func moduleDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestRegistry(tables map[string]fakeTable) *Registry {
	return New(
		WithLogger(log.New(io.Discard, "", 0)),
		WithOpener(func(path string) (SymbolTable, error) {
			tbl, ok := tables[filepath.Base(path)]
			if !ok {
				return nil, errors.New("not a shared object")
			}
			return tbl, nil
		}),
	)
}

func TestDiscoverLoadsEveryRegularFile(t *testing.T) {
	dir := moduleDir(t, "a.so", "b", "c.module")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	tables := map[string]fakeTable{
		"a.so":     wellFormed(8080, 0),
		"b":        wellFormed(8081, 0),
		"c.module": wellFormed(8082, 0),
	}

	list, err := newTestRegistry(tables).Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d modules, want 3", len(list))
	}
	ports := map[api.Port]bool{}
	for _, e := range list {
		if e.Path != filepath.Join(dir, e.Name) {
			t.Errorf("entry %s has path %s", e.Name, e.Path)
		}
		ports[e.Module.Load()] = true
	}
	for _, p := range []api.Port{8080, 8081, 8082} {
		if !ports[p] {
			t.Errorf("port %d not reported by any module", p)
		}
	}
}

func TestDiscoverMissingDirectory(t *testing.T) {
	list, err := newTestRegistry(nil).Discover(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrModuleDir) {
		t.Fatalf("err = %v, want ErrModuleDir", err)
	}
	if list != nil {
		t.Errorf("list = %v, want nil", list)
	}
}

func TestDiscoverFailsOnUnopenableFile(t *testing.T) {
	dir := moduleDir(t, "good", "junk.txt")
	tables := map[string]fakeTable{"good": wellFormed(9000, 0)}

	list, err := newTestRegistry(tables).Discover(dir)
	if !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("err = %v, want ErrOpenFailed", err)
	}
	if list != nil {
		t.Errorf("partial list returned: %v", list)
	}
}

func TestDiscoverReportsMissingSymbol(t *testing.T) {
	for _, missing := range []string{SymbolLoad, SymbolWork, SymbolUnload} {
		t.Run(missing, func(t *testing.T) {
			broken := wellFormed(9000, 0)
			delete(broken, missing)
			dir := moduleDir(t, "a", "b")
			tables := map[string]fakeTable{"a": wellFormed(9001, 0), "b": broken}

			list, err := newTestRegistry(tables).Discover(dir)
			if !errors.Is(err, ErrMissingSymbol) {
				t.Fatalf("err = %v, want ErrMissingSymbol", err)
			}
			var se *SymbolError
			if !errors.As(err, &se) || se.Symbol != missing || filepath.Base(se.Path) != "b" {
				t.Errorf("symbol error = %+v", se)
			}
			if list != nil {
				t.Errorf("partial list returned: %v", list)
			}
		})
	}
}

func TestDiscoverRejectsWronglyTypedSymbol(t *testing.T) {
	broken := wellFormed(9000, 0)
	broken[SymbolLoad] = func() int { return 9000 }
	dir := moduleDir(t, "m")

	_, err := newTestRegistry(map[string]fakeTable{"m": broken}).Discover(dir)
	if !errors.Is(err, ErrSymbolType) {
		t.Fatalf("err = %v, want ErrSymbolType", err)
	}
}

func TestDiscoverAcceptsFunctionVariables(t *testing.T) {
	load := func() int32 { return 7070 }
	work := func(*api.WorkItem) {}
	unload := func() int32 { return 0 }
	tbl := fakeTable{SymbolLoad: &load, SymbolWork: &work, SymbolUnload: &unload}

	list, err := newTestRegistry(map[string]fakeTable{"m": tbl}).Discover(moduleDir(t, "m"))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := list[0].Module.Load(); got != 7070 {
		t.Errorf("Load() = %d", got)
	}
}

func TestPluginModuleUnloadStatus(t *testing.T) {
	dir := moduleDir(t, "ok", "bad")
	tables := map[string]fakeTable{"ok": wellFormed(1, 0), "bad": wellFormed(2, 5)}
	list, err := newTestRegistry(tables).Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	for _, e := range list {
		err := e.Module.Unload()
		switch e.Name {
		case "ok":
			if err != nil {
				t.Errorf("ok unload: %v", err)
			}
		case "bad":
			var se *api.UnloadStatusError
			if !errors.As(err, &se) || se.Status != 5 || se.Module != "bad" {
				t.Errorf("bad unload: %v", err)
			}
		}
	}
}

func TestPluginOpenerRejectsNonPlugin(t *testing.T) {
	dir := moduleDir(t, "plain")
	if _, err := PluginOpener(filepath.Join(dir, "plain")); err == nil {
		t.Fatal("opening an empty file as a plugin succeeded")
	}
}

func TestStaticEntry(t *testing.T) {
	e := Static("builtin", nil)
	if e.Name != "builtin" || e.Path != "" {
		t.Errorf("unexpected entry %+v", e)
	}
}
