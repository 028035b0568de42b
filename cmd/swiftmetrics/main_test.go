package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetFlags(t *testing.T) {
	t.Helper()
	prev := []string{cfgPath, sourceFlag, outputFlag}
	prevHistory := historyFlag
	t.Cleanup(func() {
		cfgPath, sourceFlag, outputFlag = prev[0], prev[1], prev[2]
		historyFlag = prevHistory
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "swiftmetrics.yaml")
	writeFile(t, cfgPath, "source: App\noutput:\n  dir: from-file\n")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Source != "App" || cfg.Output.Dir != "from-file" || cfg.History.Enabled {
		t.Errorf("file values not applied: %+v", cfg)
	}

	sourceFlag, outputFlag, historyFlag = "Other", "out", true
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Source != "Other" || cfg.Output.Dir != "out" || !cfg.History.Enabled {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestSetup_AnalyzeAndSummary(t *testing.T) {
	resetFlags(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Core", "Cache.swift"), "import Net\nclass Cache {}\n")
	writeFile(t, filepath.Join(root, "Net", "Client.swift"), "struct Client {}\n")

	cfgPath = filepath.Join(root, "missing.yaml")
	sourceFlag = root
	historyFlag = true

	a, err := setup()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer a.Close()
	if a.history == nil {
		t.Fatal("history should be open when --history is set")
	}

	snap, err := a.eng.Run(context.Background(), a.root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(snap.Artifacts) != 3 {
		t.Errorf("expected json, markdown and dot artifacts, got %d", len(snap.Artifacts))
	}

	runs, err := a.history.Runs(context.Background(), 10)
	if err != nil || len(runs) != 1 {
		t.Errorf("expected one recorded run, got %d (%v)", len(runs), err)
	}

	out := renderSummary(snap, a.eng.OutputDir(a.root))
	for _, want := range []string{"Swift Module Metrics", "Core", "Net", "Modules:       2 (+0 test)"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if line := statusLine(snap); !strings.Contains(line, "2 modules") {
		t.Errorf("status line = %q", line)
	}
}
