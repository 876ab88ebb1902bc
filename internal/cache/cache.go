// Package cache keeps interval composites on disk as msgpack so repeated runs
// over the same AOI and interval skip compositing.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/snowline/internal/raster"
)

var (
	// ErrMiss is returned by Get when nothing is cached under a key.
	ErrMiss = errors.New("cache: miss")
	// ErrEmpty is returned by Get when the key was cached as an empty interval.
	ErrEmpty = errors.New("cache: interval cached as empty")
)

// namespace scopes cache keys.
var namespace = uuid.MustParse("7d0b7e35-4a87-4b9a-9a86-4d1c3c6f7b21")

const ext = ".msgpack"

type entry struct {
	Empty bool           `msgpack:"empty"`
	Grid  raster.Grid    `msgpack:"grid"`
	Time  time.Time      `msgpack:"time"`
	Bands []band         `msgpack:"bands"`
	Meta  map[string]any `msgpack:"meta"`
}

type band struct {
	Name string    `msgpack:"name"`
	Data []float64 `msgpack:"data"`
}

// Store is a directory of cached composites.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Key derives a stable cache key from its parts.
func Key(parts ...string) string {
	return uuid.NewSHA1(namespace, []byte(strings.Join(parts, "\x00"))).String()
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+ext)
}

// Get loads a cached composite.
func (s *Store) Get(key string) (*raster.Image, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	var e entry
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	if e.Empty {
		return nil, ErrEmpty
	}
	bands := make([]raster.Band, len(e.Bands))
	for i, b := range e.Bands {
		bands[i] = raster.Band{Name: b.Name, Data: b.Data}
	}
	im, err := raster.NewImage(e.Grid, e.Time.UTC(), bands...)
	if err != nil {
		return nil, fmt.Errorf("cache: %s: %w", key, err)
	}
	for k, v := range e.Meta {
		im.Meta[k] = normalize(v)
	}
	return im, nil
}

// Put stores a composite. A nil image records the interval as empty.
func (s *Store) Put(key string, im *raster.Image) error {
	e := entry{Empty: im == nil}
	if im != nil {
		e.Grid, e.Time, e.Meta = im.Grid, im.Time, im.Meta
		for _, b := range im.Bands() {
			e.Bands = append(e.Bands, band{Name: b.Name, Data: b.Data})
		}
	}
	b, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Purge removes every cached entry.
func (s *Store) Purge() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+ext))
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// normalize widens msgpack's compact integer encodings back to int.
func normalize(v any) any {
	switch n := v.(type) {
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	}
	return v
}
