package bundle

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
)

// DefaultPattern matches manifests anywhere below the apps directory
const DefaultPattern = "**/manifest.{yaml,yml,toml,json}"

// Manifest is the on-disk bundle description
type Manifest struct {
	Name    string `json:"bundle_name" yaml:"bundle_name" toml:"bundle_name"`
	Version string `json:"version" yaml:"version" toml:"version"`
	// Entry is relative to the manifest's directory; empty means the directory itself
	Entry string `json:"entry" yaml:"entry" toml:"entry"`
}

// Seeder loads bundles from manifest files on disk
type Seeder struct {
	catalog *Catalog
	root    string
	pattern string
	logger  *logging.Logger
}

// NewSeeder creates a seeder for manifests under root matching pattern
func NewSeeder(catalog *Catalog, root, pattern string, logger *logging.Logger) *Seeder {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Seeder{
		catalog: catalog,
		root:    root,
		pattern: pattern,
		logger:  logger,
	}
}

// Seed registers every manifest found. A missing root is not an error.
func (s *Seeder) Seed(ctx context.Context) (loaded, failed int, err error) {
	if !doublestar.ValidatePattern(s.pattern) {
		return 0, 0, fmt.Errorf("invalid manifest pattern %q", s.pattern)
	}
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		s.logger.Warn("Apps directory not found", zap.String("dir", s.root))
		return 0, 0, nil
	}

	s.logger.Info("Seeding bundles", zap.String("dir", s.root), zap.String("pattern", s.pattern))

	// the walk callback runs on several goroutines
	var (
		mu        sync.Mutex
		manifests []string
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		if ok, _ := doublestar.Match(s.pattern, filepath.ToSlash(rel)); ok {
			mu.Lock()
			manifests = append(manifests, path)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("walk %s: %w", s.root, err)
	}

	for _, path := range manifests {
		if err := s.load(path); err != nil {
			s.logger.Warn("Failed to load manifest", zap.String("manifest", path), zap.Error(err))
			failed++
			continue
		}
		loaded++
	}

	s.logger.Info("Seeding complete", zap.Int("loaded", loaded), zap.Int("failed", failed))
	return loaded, failed, nil
}

func (s *Seeder) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := Decode(path, data)
	if err != nil {
		return err
	}
	if m.Name == "" {
		return ErrNoName
	}

	dir := filepath.Dir(path)
	info := Info{
		Name:     m.Name,
		Version:  m.Version,
		Path:     dir,
		Manifest: path,
	}
	if m.Entry != "" {
		info.Path = filepath.Join(dir, filepath.FromSlash(m.Entry))
		mtype, err := mimetype.DetectFile(info.Path)
		if err != nil {
			return fmt.Errorf("entry %s: %w", m.Entry, err)
		}
		info.MediaType = mtype.String()
	}
	return s.catalog.Register(info)
}

// Decode parses a manifest, choosing the format from the file extension
func Decode(path string, data []byte) (Manifest, error) {
	var m Manifest
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".json":
		err = sonic.Unmarshal(data, &m)
	default:
		return m, fmt.Errorf("unsupported manifest format %q", ext)
	}
	if err != nil {
		return m, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return m, nil
}
