// Package fetcher implements the Fetcher: invokes an external extractor
// subprocess to materialize an Opus artifact for a (title, artist) query,
// reads its tags, and records the outcome in the Metadata Store.
package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"github.com/snapetech/audiocache/internal/artifact"
	"github.com/snapetech/audiocache/internal/metrics"
	"github.com/snapetech/audiocache/internal/store"
)

// Extractor shells out to the extractor binary and reports the final output
// path plus the source duration in seconds, per spec.md §9.
type Extractor struct {
	// BinaryPath is the extractor executable, e.g. "yt-dlp". Defaults to
	// "yt-dlp" when empty.
	BinaryPath string
	// BitrateKbps sets --audio-quality's target bitrate.
	BitrateKbps int
}

type extraction struct {
	path     string
	duration float64
}

func (e *Extractor) bin() string {
	if e.BinaryPath == "" {
		return "yt-dlp"
	}
	return e.BinaryPath
}

// run invokes the extractor for "<artist> <title> audio", writing the
// result under outDir with basename outID, and returns the path it wrote
// plus the reported duration.
func (e *Extractor) run(ctx context.Context, artistTitle, outDir, outID string) (extraction, error) {
	outTemplate := outDir + string(os.PathSeparator) + outID + ".%(ext)s"
	args := []string{
		"--extract-audio",
		"--audio-format", "opus",
		"--audio-quality", strconv.Itoa(e.BitrateKbps) + "K",
		"--no-playlist",
		"--output", outTemplate,
		"--print", "after_move:filepath",
		"--print", "duration",
		fmt.Sprintf("ytsearch1:%s audio", artistTitle),
	}
	cmd := exec.CommandContext(ctx, e.bin(), args...)
	out, err := cmd.Output()
	if err != nil {
		return extraction{}, fmt.Errorf("%s: %w", e.bin(), err)
	}

	lines := splitNonEmptyLines(string(out))
	if len(lines) < 2 {
		return extraction{}, fmt.Errorf("%s: unexpected output %q", e.bin(), string(out))
	}
	// --print emits in the order given: filepath then duration, each on its
	// own line, once per video processed.
	path := lines[len(lines)-2]
	durStr := lines[len(lines)-1]
	duration, _ := strconv.ParseFloat(strings.TrimSpace(durStr), 64)
	return extraction{path: path, duration: duration}, nil
}

func splitNonEmptyLines(s string) []string {
	sc := bufio.NewScanner(strings.NewReader(s))
	var lines []string
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Fetcher runs extraction jobs and records results in the Metadata Store and
// Artifact Store. OnSuccess, when set, is invoked after a successful
// MarkCached so the caller can trigger an eviction sweep.
type Fetcher struct {
	Store      *store.Store
	Artifact   *artifact.Store
	Extractor  *Extractor
	Log        *slog.Logger
	OnSuccess  func()
}

// Run performs one fetch-and-cache cycle for query, using title/artist as
// the fallback metadata when the extracted file carries no tags of its own.
func (f *Fetcher) Run(ctx context.Context, query, title, artist string) {
	log := f.Log
	if log == nil {
		log = slog.Default()
	}

	id := artifact.NewFileName()
	id = strings.TrimSuffix(id, ".opus")

	result, err := f.Extractor.run(ctx, artist+" "+title, f.Artifact.Dir, id)
	if err != nil {
		log.Error("extraction failed", "query", query, "error", err)
		f.fail(ctx, query, log)
		return
	}

	finalName := id + ".opus"
	finalPath, err := f.Artifact.Path(finalName)
	if err != nil {
		log.Error("resolve artifact path failed", "query", query, "error", err)
		f.fail(ctx, query, log)
		return
	}
	if result.path != finalPath {
		if err := os.Rename(result.path, finalPath); err != nil {
			log.Error("rename artifact failed", "query", query, "error", err)
			f.fail(ctx, query, log)
			return
		}
	}

	readTitle, readArtist, readAlbum := readTags(finalPath, log)
	if readTitle == "" {
		readTitle = title
	}
	if readArtist == "" {
		readArtist = artist
	}

	if err := f.Store.MarkCached(ctx, query, finalName, readTitle, readArtist, readAlbum, result.duration); err != nil {
		log.Error("mark cached failed", "query", query, "error", err)
		_ = f.Artifact.Delete(finalName)
		f.fail(ctx, query, log)
		return
	}

	metrics.FetchOutcomes.WithLabelValues("success").Inc()
	log.Info("fetched", "query", query, "file_name", finalName, "duration", result.duration)
	if f.OnSuccess != nil {
		f.OnSuccess()
	}
}

func (f *Fetcher) fail(ctx context.Context, query string, log *slog.Logger) {
	metrics.FetchOutcomes.WithLabelValues("error").Inc()
	if err := f.Store.MarkError(ctx, query); err != nil {
		log.Error("mark error failed", "query", query, "error", err)
	}
}

// readTags extracts title/artist/album from the Ogg Opus container's
// comment fields. A read failure is non-fatal: the caller already has
// title/artist from the request and can proceed without tags.
func readTags(path string, log *slog.Logger) (title, artist, album string) {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("tag read open failed", "path", path, "error", err)
		return "", "", ""
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		log.Warn("tag read failed", "path", path, "error", err)
		return "", "", ""
	}
	return m.Title(), m.Artist(), m.Album()
}
