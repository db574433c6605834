package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"zupgo/internal/models"
)

// FileName is the well-known artifact name inside a collection directory.
// Its presence means the last batch for that collection had failures.
const FileName = "failed_downloads.html"

var ErrNoReport = errors.New("no failure report")

// html/template normalises href values (percent-encoding, #ZgotmplZ for
// unsafe schemes), so each link also carries its value verbatim in
// data-link, a plain attribute that is only HTML-escaped. Read prefers it.

var page = template.Must(template.New("report").Parse(`<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1><a href="{{.PageURL}}" data-link="{{.PageURL}}">{{.Title}}</a></h1>
<ul>
{{- range .Failed}}
<li><a href="{{.SourceURL}}" data-link="{{.SourceURL}}" title="{{.Reason}}">{{.SourceURL}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

// Report is the parsed content of a failure artifact.
type Report struct {
	Title   string   `json:"title"`
	PageURL string   `json:"pageUrl"`
	Failed  []string `json:"failed"`
}

func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

func Exists(dir string) bool {
	_, err := os.Stat(Path(dir))
	return err == nil
}

// Write persists the artifact when failed is non-empty and removes any
// stale one otherwise. A failed removal is only logged.
func Write(dir, title, pageURL string, failed []models.FailedItem) error {
	path := Path(dir)

	if len(failed) == 0 {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to remove stale report", "path", path, "error", err)
		} else if err == nil {
			slog.Info("Removed stale report", "path", path)
		}
		return nil
	}

	var buf bytes.Buffer
	err := page.Execute(&buf, struct {
		Title   string
		PageURL string
		Failed  []models.FailedItem
	}{title, pageURL, failed})
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	slog.Info("Wrote failure report", "path", path, "failed", len(failed))
	return nil
}

// Read parses the artifact in dir.
func Read(dir string) (*Report, error) {
	f, err := os.Open(Path(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoReport
		}
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}

	heading := doc.Find("h1 a").First()
	r := &Report{
		Title:   strings.TrimSpace(heading.Text()),
		PageURL: link(heading),
		Failed:  []string{},
	}
	doc.Find("ul li a").Each(func(_ int, s *goquery.Selection) {
		r.Failed = append(r.Failed, link(s))
	})
	return r, nil
}

// link returns the verbatim URL of an anchor, falling back to href for
// artifacts written without data-link.
func link(s *goquery.Selection) string {
	if v, ok := s.Attr("data-link"); ok {
		return v
	}
	return s.AttrOr("href", "")
}
