package synth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Key addresses one synthesized artifact. Two runs asking for the same
// segment in the same language and voice share the artifact.
type Key struct {
	Index    int
	Language string
	Voice    string
}

func (k Key) Filename() string {
	return fmt.Sprintf("seg_%04d_%s_%s.wav", k.Index, sanitize(k.Language), sanitize(k.Voice))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Cache is a key-addressed store of synthesized clips.
type Cache interface {
	// Path returns where the artifact for key lives or should be written.
	Path(key Key) string
	Get(key Key) (Clip, bool)
	Put(key Key, clip Clip)
}

// DirCache keeps artifacts in a directory, one WAV per key. Clips written
// by a previous run are rediscovered by decoding their header, which makes
// rebuilds resumable.
type DirCache struct {
	dir   string
	mu    sync.Mutex
	known map[Key]Clip
}

func NewDirCache(dir string) *DirCache {
	return &DirCache{dir: dir, known: make(map[Key]Clip)}
}

func (c *DirCache) Path(key Key) string {
	return filepath.Join(c.dir, key.Filename())
}

func (c *DirCache) Get(key Key) (Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if clip, ok := c.known[key]; ok {
		return clip, true
	}
	path := c.Path(key)
	if _, err := os.Stat(path); err != nil {
		return Clip{}, false
	}
	clip, err := readClipInfo(path)
	if err != nil {
		// Unreadable leftovers are treated as misses and overwritten.
		return Clip{}, false
	}
	c.known[key] = clip
	return clip, true
}

func (c *DirCache) Put(key Key, clip Clip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[key] = clip
}

// cachingSynth skips the backend when an artifact for the key already
// exists. Resynthesizing long videos is expensive; this is the resume path.
type cachingSynth struct {
	inner Synthesizer
	cache Cache
	log   *slog.Logger
}

func WithCache(inner Synthesizer, cache Cache, log *slog.Logger) Synthesizer {
	return &cachingSynth{inner: inner, cache: cache, log: log}
}

func (c *cachingSynth) Synthesize(ctx context.Context, req Request, _ string) (Clip, error) {
	key := Key{Index: req.Index, Language: req.Language, Voice: req.Voice}
	if clip, ok := c.cache.Get(key); ok {
		c.log.Info("reusing cached clip",
			slog.Int("segment", req.Index), slog.String("path", clip.Path))
		return clip, nil
	}
	clip, err := c.inner.Synthesize(ctx, req, c.cache.Path(key))
	if err != nil {
		return Clip{}, err
	}
	c.cache.Put(key, clip)
	return clip, nil
}
