package gtfs

import (
	"context"
	"log/slog"
	"path/filepath"

	"transitd/internal/apperr"
	"transitd/internal/cache"
)

// snapshotCacheKey is the cache.Store key under which the gob+gzip snapshot
// bytes for a provider are stored; the bundle hash is stored beside those
// bytes in the same cache entry rather than as a second entry, so a single
// Get confirms both presence and validity before anything is decoded.
func snapshotCacheKey(provider string) string {
	return provider + ":gtfs-snapshot"
}

// Loader orchestrates the pipeline in spec.md §4.4: download, hash,
// cache-or-parse, index, derive variants, persist.
type Loader struct {
	Cache      *cache.Store
	Downloader *Downloader
	Log        *slog.Logger
}

func NewLoader(store *cache.Store, log *slog.Logger) *Loader {
	return &Loader{Cache: store, Downloader: NewDownloader(log), Log: log}
}

// Load ensures provider's GTFS bundle at url is downloaded into
// workDir/gtfs, then returns a Snapshot either restored from cache (hash
// match) or freshly parsed and persisted.
func (l *Loader) Load(ctx context.Context, provider, url, workDir string) (*Snapshot, error) {
	release, err := l.Cache.AcquireDownloadLock(provider + "-gtfs-download")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "gtfs: acquire download lock", err)
	}
	defer release()

	gtfsDir := filepath.Join(workDir, "gtfs")
	if err := l.Downloader.EnsureExtracted(ctx, url, gtfsDir); err != nil {
		return nil, err
	}

	hash, err := HashDir(gtfsDir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedFeed, "gtfs: hash bundle", err)
	}

	var cached struct {
		Hash string
		Blob []byte
	}
	if hit, err := l.Cache.Get(snapshotCacheKey(provider), &cached); err == nil && hit && cached.Hash == hash {
		snap, err := DecodeSnapshot(cached.Blob)
		if err == nil {
			l.Log.Info("gtfs snapshot cache hit", "provider", provider, "hash", hash)
			return snap, nil
		}
		l.Log.Warn("gtfs snapshot cache entry corrupt, reparsing", "provider", provider, "error", err)
	}

	snap, err := ParseDir(gtfsDir, l.Log)
	if err != nil {
		return nil, err
	}
	snap.Hash = hash

	blob, err := EncodeSnapshot(snap)
	if err != nil {
		l.Log.Warn("gtfs snapshot encode failed, continuing without cache", "provider", provider, "error", err)
		return snap, nil
	}

	if err := l.Cache.Set(snapshotCacheKey(provider), struct {
		Hash string
		Blob []byte
	}{Hash: hash, Blob: blob}, 0); err != nil {
		l.Log.Warn("gtfs snapshot cache write failed", "provider", provider, "error", err)
	}

	l.Log.Info("gtfs bundle parsed and cached", "provider", provider, "hash", hash,
		"stops", len(snap.Stops), "routes", len(snap.Routes), "trips", len(snap.Trips))
	return snap, nil
}
