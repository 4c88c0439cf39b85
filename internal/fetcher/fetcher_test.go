package fetcher

import (
	"log/slog"
	"reflect"
	"testing"
)

func TestSplitNonEmptyLines(t *testing.T) {
	got := splitNonEmptyLines("/tmp/abc.opus\n\n245.0\n")
	want := []string{"/tmp/abc.opus", "245.0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitNonEmptyLines() = %v, want %v", got, want)
	}
}

func TestExtractorBin_defaultsToYtDlp(t *testing.T) {
	e := &Extractor{}
	if e.bin() != "yt-dlp" {
		t.Errorf("bin() = %q, want yt-dlp", e.bin())
	}
	e.BinaryPath = "/usr/local/bin/yt-dlp"
	if e.bin() != "/usr/local/bin/yt-dlp" {
		t.Errorf("bin() = %q, want override", e.bin())
	}
}

func TestReadTags_missingFileIsNonFatal(t *testing.T) {
	title, artist, album := readTags("/nonexistent/path.opus", slog.Default())
	if title != "" || artist != "" || album != "" {
		t.Errorf("readTags() = (%q, %q, %q), want all empty", title, artist, album)
	}
}
