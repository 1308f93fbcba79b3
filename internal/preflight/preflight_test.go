package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adreact/internal/preflight"
	"adreact/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := preflight.CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for %s: %s", dir, result.Detail)
	}

	result = preflight.CheckDirectoryAccess("Data directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing directory")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = preflight.CheckDirectoryAccess("Data directory", file)
	if result.Passed || !strings.Contains(result.Detail, "is not a directory") {
		t.Fatalf("expected not-a-directory failure, got %+v", result)
	}
}

func TestCheckFileReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ad.mp4")
	if err := os.WriteFile(path, []byte("advertisement"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if result := preflight.CheckFileReadable("Advertisement asset", path); !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}
	if result := preflight.CheckFileReadable("Advertisement asset", dir); result.Passed {
		t.Fatal("directory must not pass the file check")
	}
	if result := preflight.CheckFileReadable("Advertisement asset", filepath.Join(dir, "missing")); result.Passed {
		t.Fatal("missing file must not pass")
	}
}

func TestCheckAPIBind(t *testing.T) {
	cases := []struct {
		bind string
		want bool
	}{
		{"127.0.0.1:7523", true},
		{":7523", true},
		{"", false},
		{"localhost", false},
	}
	for _, tc := range cases {
		result := preflight.CheckAPIBind(tc.bind)
		if result.Passed != tc.want {
			t.Fatalf("bind %q: passed=%v, want %v (%s)", tc.bind, result.Passed, tc.want, result.Detail)
		}
	}
}

func TestCheckCaptureBinaryMissing(t *testing.T) {
	result := preflight.CheckCaptureBinary("definitely-not-ffmpeg-binary")
	if result.Passed {
		t.Fatal("expected failure for missing binary")
	}
}

func TestRunAllSkipsUnconfiguredFeatures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.AdPath = ""
	cfg.Capture.VideoDevice = ""

	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 base checks, got %d", len(results))
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("check %s failed: %s", result.Name, result.Detail)
		}
	}
	if !preflight.AllPassed(results) {
		t.Fatal("AllPassed disagreed with individual results")
	}
}

func TestRunAllIncludesAdAssetWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAdAsset(t))
	cfg.Capture.VideoDevice = ""

	results := preflight.RunAll(context.Background(), cfg)
	found := false
	for _, result := range results {
		if result.Name == "Advertisement asset" {
			found = true
			if !result.Passed {
				t.Fatalf("ad asset check failed: %s", result.Detail)
			}
		}
	}
	if !found {
		t.Fatal("ad asset check missing")
	}
}
