// Package imagestore keeps ad images as files under <base>/Images/ads and
// resolves the relative paths stored in the database back to files.
//
// Resolve search order for a relative path rel:
//
//  1. rel itself when it is absolute
//  2. <BaseDir>/Images/<rel>
//  3. <root>/Images/<rel> for each search root, in order
//  4. <BaseDir>/Images/ads/<base(rel)>, then the same under each search root
package imagestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

const (
	imagesDir = "Images"
	adsDir    = "ads"

	// DefaultMaxBytes caps the size of a stored image
	DefaultMaxBytes = 5 * 1024 * 1024
)

var (
	ErrNotFound       = errors.New("image not found")
	ErrTooLarge       = errors.New("image exceeds size limit")
	ErrUnsupported    = errors.New("unsupported image type")
	ErrSourceNotFound = errors.New("source image does not exist")
)

var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
}

type Config struct {
	BaseDir     string
	SearchRoots []string
	MaxBytes    int64
	ResolveTTL  time.Duration
}

// Store copies, resolves and deletes ad images
type Store struct {
	base     string
	roots    []string
	maxBytes int64
	now      func() time.Time
	resolved *expirable.LRU[string, string]
}

func New(cfg Config) *Store {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.ResolveTTL <= 0 {
		cfg.ResolveTTL = 5 * time.Minute
	}
	return &Store{
		base:     cfg.BaseDir,
		roots:    cfg.SearchRoots,
		maxBytes: cfg.MaxBytes,
		now:      time.Now,
		resolved: expirable.NewLRU[string, string](1024, nil, cfg.ResolveTTL),
	}
}

// Dir is the folder new images are written to
func (s *Store) Dir() string {
	return filepath.Join(s.base, imagesDir, adsDir)
}

// SaveImage copies the file at src into the image folder and returns the
// relative path to persist
func (s *Store) SaveImage(src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, src)
	}
	if info.Size() > s.maxBytes {
		return "", ErrTooLarge
	}

	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return s.SaveReader(f, filepath.Ext(src))
}

// SaveReader writes r into the image folder under a timestamped name.
// ext selects the file extension and must name an image type.
func (s *Store) SaveReader(r io.Reader, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return "", fmt.Errorf("create image folder: %w", err)
	}

	name := s.fileName(ext)
	dst := filepath.Join(s.Dir(), name)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := io.Copy(out, io.LimitReader(r, s.maxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	rel := filepath.ToSlash(filepath.Join(adsDir, name))
	logger.Debug("Image stored", zap.String("path", rel), zap.Int64("bytes", n))
	return rel, nil
}

func (s *Store) fileName(ext string) string {
	ts := s.now().Format("20060102150405.000")
	ts = strings.Replace(ts, ".", "", 1)
	return fmt.Sprintf("ad_%s_%s%s", ts, uuid.New().String()[:8], ext)
}

// Candidates lists the locations Resolve tries for rel, in order
func (s *Store) Candidates(rel string) []string {
	if rel == "" {
		return nil
	}
	if filepath.IsAbs(rel) {
		return []string{rel}
	}
	clean := strings.TrimLeft(filepath.FromSlash(rel), `\/`)
	base := filepath.Base(clean)

	roots := append([]string{s.base}, s.roots...)
	out := make([]string, 0, len(roots)*2)
	seen := make(map[string]bool, len(roots)*2)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	for _, root := range roots {
		add(filepath.Join(root, imagesDir, clean))
	}
	for _, root := range roots {
		add(filepath.Join(root, imagesDir, adsDir, base))
	}
	return out
}

// Resolve returns the first existing file for rel
func (s *Store) Resolve(rel string) (string, error) {
	if path, ok := s.resolved.Get(rel); ok {
		if fileExists(path) {
			return path, nil
		}
		s.resolved.Remove(rel)
	}
	for _, path := range s.Candidates(rel) {
		if fileExists(path) {
			s.resolved.Add(rel, path)
			return path, nil
		}
	}
	logger.Debug("Image not found", zap.String("path", rel))
	return "", ErrNotFound
}

// Delete removes the image at its primary location and at any fallback
// location it resolves to. Failures are logged, never returned.
func (s *Store) Delete(rel string) {
	if rel == "" {
		return
	}
	candidates := s.Candidates(rel)
	primary := candidates[0]
	s.remove(primary)

	s.resolved.Remove(rel)
	if alt, err := s.Resolve(rel); err == nil && alt != primary {
		s.remove(alt)
		s.resolved.Remove(rel)
	}
}

func (s *Store) remove(path string) {
	err := os.Remove(path)
	if err == nil {
		logger.Info("Image deleted", zap.String("path", path))
		return
	}
	if !os.IsNotExist(err) {
		logger.Error("Failed to delete image", zap.String("path", path), zap.Error(err))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
