package report

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"zupgo/internal/models"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	failed := []models.FailedItem{
		{Index: 1, SourceURL: "http://img.example/bad.jpg", Kind: models.KindStatus, Reason: "404 Not Found"},
		{Index: 4, SourceURL: "http://img.example/q.jpg?a=1&b=<2>", Kind: models.KindNetwork, Reason: "timeout"},
	}

	if err := Write(dir, "x", "http://ref", failed); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !Exists(dir) {
		t.Fatal("report not written")
	}

	r, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.Title != "x" {
		t.Errorf("Title = %q, want x", r.Title)
	}
	if r.PageURL != "http://ref" {
		t.Errorf("PageURL = %q, want http://ref", r.PageURL)
	}
	want := []string{"http://img.example/bad.jpg", "http://img.example/q.jpg?a=1&b=<2>"}
	if !reflect.DeepEqual(r.Failed, want) {
		t.Errorf("Failed = %v, want %v", r.Failed, want)
	}
}

func TestWriteEscapesTitle(t *testing.T) {
	dir := t.TempDir()
	failed := []models.FailedItem{{SourceURL: "http://a/b"}}
	if err := Write(dir, "<script>alert(1)</script>", "http://ref", failed); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, _ := os.ReadFile(Path(dir))
	if strings.Contains(string(raw), "<script>") {
		t.Errorf("title not escaped:\n%s", raw)
	}
}

func TestWriteOverwritesPrior(t *testing.T) {
	dir := t.TempDir()
	Write(dir, "x", "http://ref", []models.FailedItem{{SourceURL: "http://a/1"}, {SourceURL: "http://a/2"}})
	Write(dir, "x", "http://ref", []models.FailedItem{{SourceURL: "http://a/3"}})

	r, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(r.Failed, []string{"http://a/3"}) {
		t.Errorf("Failed = %v, want only the latest failure", r.Failed)
	}
}

func TestWriteEmptyRemovesStale(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, "x", "http://ref", []models.FailedItem{{SourceURL: "http://a/1"}}); err != nil {
		t.Fatal(err)
	}

	if err := Write(dir, "x", "http://ref", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if Exists(dir) {
		t.Error("stale report not removed")
	}

	// Nothing to remove is fine too.
	if err := Write(dir, "x", "http://ref", nil); err != nil {
		t.Errorf("Write with no report present: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	if _, err := Read(t.TempDir()); !errors.Is(err, ErrNoReport) {
		t.Errorf("Read error = %v, want ErrNoReport", err)
	}
}

func TestReadKeepsLinksVerbatim(t *testing.T) {
	tests := []struct {
		name    string
		pageURL string
		source  string
	}{
		{"non-ascii", "http://例子.com/漫画/第1话", "http://图片.com/第1话/001.jpg"},
		{"space", "http://ref/a b", "http://img/a b.jpg"},
		{"non-http scheme", "javascript:void(0)", "ftp://img/1.jpg"},
		{"html metacharacters", `http://ref/?q="a"&b=<c>`, `http://img/?x='1'&y=2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := Write(dir, "x", tt.pageURL, []models.FailedItem{{SourceURL: tt.source}}); err != nil {
				t.Fatalf("Write: %v", err)
			}
			r, err := Read(dir)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if r.PageURL != tt.pageURL {
				t.Errorf("PageURL = %q, want %q", r.PageURL, tt.pageURL)
			}
			if !reflect.DeepEqual(r.Failed, []string{tt.source}) {
				t.Errorf("Failed = %q, want [%q]", r.Failed, tt.source)
			}
		})
	}
}

func TestWriteEmptyIgnoresRemovalFailure(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory in place of the artifact cannot be removed.
	if err := os.MkdirAll(filepath.Join(Path(dir), "keep"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Write(dir, "x", "http://ref", nil); err != nil {
		t.Errorf("Write = %v, want nil when the stale report cannot be removed", err)
	}
	if _, err := os.Stat(Path(dir)); err != nil {
		t.Errorf("artifact path should still be present: %v", err)
	}
}
