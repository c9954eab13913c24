package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/idnahacks/GoodHound/internal/paths"
	"github.com/idnahacks/GoodHound/internal/results"
)

func testReport() *Report {
	return &Report{
		ScanDate: "2022-02-07",
		Totals: results.GrandTotals{
			UsersWithPath:  3,
			UserPercentage: 25.0,
			TotalPaths:     8,
			PctSeenBefore:  75.0,
			NewPaths:       2,
		},
		Busiest: []results.Result{
			{StartNode: "G1", NumMembers: 2, Percentage: 50.0, Hops: 2, Cost: 1, RiskScore: 42.5, FullPath: "G1 - MemberOf -> G2 - AdminTo -> C", Query: "match p=() return p", UID: "aaaa"},
		},
		Weakest: []paths.Link{
			{Chain: "G2->AdminTo->C", Count: 4, Coverage: 50.0, Query: "match p=() return p"},
		},
	}
}

func TestWriteStdout(t *testing.T) {
	var b strings.Builder
	if err := testReport().WriteStdout(&b); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := b.String()
	for _, want := range []string{"GRAND TOTALS", "BUSIEST PATHS", "THE WEAKEST LINKS", "G1", "42.5", "G2->AdminTo->C"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteMarkdown(t *testing.T) {
	var b strings.Builder
	if err := testReport().WriteMarkdown(&b); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, "# GRAND TOTALS") || !strings.Contains(out, "## BUSIEST PATHS") {
		t.Fatalf("markdown headings missing:\n%s", out)
	}
	if !strings.Contains(out, "| Starting Node |") {
		t.Fatalf("markdown header row missing:\n%s", out)
	}
}

func TestWriteCSVFiles(t *testing.T) {
	dir := t.TempDir()
	files, err := testReport().WriteCSVFiles(dir)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3", len(files))
	}
	wantNames := []string{
		"2022-02-07_GoodHound_summary.csv",
		"2022-02-07_GoodHound_busiestpaths.csv",
		"2022-02-07_GoodHound_weakestlinks.csv",
	}
	for i, f := range files {
		if filepath.Base(f) != wantNames[i] {
			t.Fatalf("file %d: got %s want %s", i, filepath.Base(f), wantNames[i])
		}
	}
	data, err := os.ReadFile(files[1])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "Starting Node") {
		t.Fatalf("busiest paths csv missing header: %s", data)
	}
}

func TestWriteCSVFilesAvoidsCollision(t *testing.T) {
	dir := t.TempDir()
	r := testReport()
	if _, err := r.WriteCSVFiles(dir); err != nil {
		t.Fatalf("first write: %v", err)
	}
	files, err := r.WriteCSVFiles(dir)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	for _, f := range files {
		base := filepath.Base(f)
		if base == "2022-02-07_GoodHound_summary.csv" || base == "2022-02-07_GoodHound_busiestpaths.csv" || base == "2022-02-07_GoodHound_weakestlinks.csv" {
			t.Fatalf("second write reused name %s", base)
		}
		if !strings.HasSuffix(base, ".csv") {
			t.Fatalf("suffix lost: %s", base)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	path, err := testReport().WriteHTML(dir)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	for _, want := range []string{"<!DOCTYPE html>", "GRAND TOTALS", "G1", "2022-02-07"} {
		if !strings.Contains(out, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestWriteXLSX(t *testing.T) {
	dir := t.TempDir()
	path, err := testReport().WriteXLSX(dir)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "2022-02-07_GoodHound.xlsx" {
		t.Fatalf("unexpected name %s", filepath.Base(path))
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("xlsx not written: %v", err)
	}
}

func TestEnsureDirRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(file); err == nil {
		t.Fatal("expected error for pre-existing file")
	}
	if err := EnsureDir(filepath.Join(dir, "new", "nested")); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
}
