package gtfs

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"transitd/internal/apperr"
)

// Downloader fetches a GTFS static zip bundle and extracts it, reusing a
// conditional GET (ETag/If-Modified-Since) against a local metadata
// sidecar so a feed that hasn't changed upstream never re-downloads. This
// is the teacher's pkg/gtfs/downloader.go pattern, generalized from a
// single hardcoded Warsaw URL to any provider's GTFS_URL.
type Downloader struct {
	HTTPClient *http.Client
	Log        *slog.Logger
}

func NewDownloader(log *slog.Logger) *Downloader {
	return &Downloader{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Log:        log,
	}
}

type downloadMeta struct {
	ETag         string
	LastModified string
}

// EnsureExtracted downloads url into destDir/gtfs.zip (conditionally, via a
// sidecar .meta file recording ETag/Last-Modified) and extracts it into
// destDir if the zip changed or destDir is empty. On network failure, it
// falls back to whatever was previously extracted, per spec.md §7
// NetworkError handling ("transient; fall back to cache").
func (d *Downloader) EnsureExtracted(ctx context.Context, url, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrap(err, "gtfs: create dest dir")
	}

	zipPath := filepath.Join(destDir, "gtfs.zip")
	metaPath := filepath.Join(destDir, "gtfs.zip.meta")

	meta := readMeta(metaPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "gtfs: build download request")
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		if hasExtractedBundle(destDir) {
			d.Log.Warn("gtfs download failed, using previously extracted bundle", "url", url, "error", err)
			return nil
		}
		return apperr.Wrap(apperr.KindNetwork, "gtfs download failed and no local bundle to fall back to", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if hasExtractedBundle(destDir) {
			return nil
		}
		// metadata says unchanged, but the extracted tree is missing; fall
		// through and re-extract from whatever zip bytes we already have.
	case http.StatusOK:
		// proceed to write + extract below
	default:
		if hasExtractedBundle(destDir) {
			d.Log.Warn("gtfs download returned non-200, using previous bundle", "url", url, "status", resp.StatusCode)
			return nil
		}
		return apperr.New(apperr.KindNetwork, "gtfs download returned unexpected status")
	}

	if resp.StatusCode == http.StatusOK {
		f, err := os.Create(zipPath)
		if err != nil {
			return errors.Wrap(err, "gtfs: create zip file")
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			f.Close()
			return errors.Wrap(err, "gtfs: write zip file")
		}
		f.Close()

		writeMeta(metaPath, downloadMeta{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		})
	}

	if err := extractZip(zipPath, destDir); err != nil {
		return apperr.Wrap(apperr.KindMalformedFeed, "gtfs: extract zip", err)
	}
	return nil
}

func hasExtractedBundle(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "stops.txt"))
	return err == nil
}

func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// GTFS zips are flat; guard against zip-slip regardless.
		name := filepath.Base(f.Name)
		if name == "." || name == ".." {
			continue
		}
		dst := filepath.Join(destDir, name)

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(dst)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

func readMeta(path string) downloadMeta {
	data, err := os.ReadFile(path)
	if err != nil {
		return downloadMeta{}
	}
	lines := strings.Split(string(data), "\n")
	var m downloadMeta
	if len(lines) > 0 {
		m.ETag = lines[0]
	}
	if len(lines) > 1 {
		m.LastModified = lines[1]
	}
	return m
}

func writeMeta(path string, m downloadMeta) {
	content := m.ETag + "\n" + m.LastModified + "\n"
	_ = os.WriteFile(path, []byte(content), 0o644)
}
