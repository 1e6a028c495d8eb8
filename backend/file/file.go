// Package file stores each entry in its own file under a directory.
//
// Layout: <dir>/<h[0:2]>/<h> where h is the hex SHA-256 of the key. A file
// holds expiresAt (unix nanoseconds, int64 big-endian, 0 = never) followed by
// the value bytes. Writes go through a temp file and rename, so readers never
// observe a partial entry. Counter and Add operations are atomic within one
// process only.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/unkn0wn-root/cachekit/backend"
	"github.com/unkn0wn-root/cachekit/internal/wire"
)

const hdrLen = 8

type Config struct {
	Dir   string           // required
	Clock func() time.Time // nil => time.Now
}

type File struct {
	dir string
	now func() time.Time
	mu  sync.Mutex // serializes read-modify-write operations
}

var (
	_ backend.Backend     = (*File)(nil)
	_ backend.Incrementer = (*File)(nil)
	_ backend.Decrementer = (*File)(nil)
	_ backend.Adder       = (*File)(nil)
)

var ErrNoDir = errors.New("file backend: directory is required")

func New(cfg Config) (*File, error) {
	if cfg.Dir == "" {
		return nil, ErrNoDir
	}
	f := &File{dir: filepath.Clean(cfg.Dir), now: cfg.Clock}
	if f.now == nil {
		f.now = time.Now
	}
	return f, nil
}

func (f *File) Name() string { return "file" }

// Connect creates the cache directory.
func (f *File) Connect(context.Context) error {
	return os.MkdirAll(f.dir, 0o755)
}

func (f *File) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(f.dir, h[:2], h)
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, _, ok, err := f.read(key)
	return v, ok, err
}

// read returns the live value and its expiry. Expired or truncated files are
// removed and reported as misses.
func (f *File) read(key string) ([]byte, time.Time, bool, error) {
	p := f.path(key)
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	if len(b) < hdrLen {
		_ = os.Remove(p)
		return nil, time.Time{}, false, nil
	}
	var exp time.Time
	if ns := int64(binary.BigEndian.Uint64(b[:hdrLen])); ns != 0 {
		exp = time.Unix(0, ns)
		if !f.now().Before(exp) {
			_ = os.Remove(p)
			return nil, time.Time{}, false, nil
		}
	}
	return b[hdrLen:], exp, true, nil
}

func (f *File) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return f.now().Add(ttl)
}

func (f *File) write(key string, value []byte, exp time.Time) error {
	p := f.path(key)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	buf := make([]byte, hdrLen+len(value))
	if !exp.IsZero() {
		binary.BigEndian.PutUint64(buf[:hdrLen], uint64(exp.UnixNano()))
	}
	copy(buf[hdrLen:], value)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (f *File) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := f.write(key, value, f.expiry(ttl)); err != nil {
		return false, err
	}
	return true, nil
}

func (f *File) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _, ok, err := f.read(key)
	if err != nil || ok {
		return false, err
	}
	if err := f.write(key, value, f.expiry(ttl)); err != nil {
		return false, err
	}
	return true, nil
}

func (f *File) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Flush removes every entry under the directory. The directory itself stays.
func (f *File) Flush(context.Context) error {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(f.dir, e.Name())); err != nil {
			return fmt.Errorf("file backend: flush %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (f *File) Increment(_ context.Context, key string, delta int64) (int64, bool, error) {
	return f.add(key, delta)
}

func (f *File) Decrement(_ context.Context, key string, delta int64) (int64, bool, error) {
	return f.add(key, -delta)
}

func (f *File) add(key string, delta int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, exp, ok, err := f.read(key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := wire.ParseInt(v)
	if err != nil {
		return 0, true, backend.ErrNotInteger
	}
	if n, err = backend.AddInt(n, delta); err != nil {
		return 0, true, err
	}
	if err := f.write(key, wire.EncodeInt(n), exp); err != nil {
		return 0, true, err
	}
	return n, true, nil
}

func (f *File) Close(context.Context) error { return nil }
