package bundle

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/utils"
)

var (
	ErrNoName = errors.New("bundle name is required")
	ErrNoPath = errors.New("bundle path is required")
)

// Info describes an installed bundle
type Info struct {
	Name      string `json:"bundle_name"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path"`
	MediaType string `json:"media_type,omitempty"`
	Manifest  string `json:"manifest,omitempty"`
}

// Catalog maps bundle names to execution paths
type Catalog struct {
	mu      sync.RWMutex
	bundles map[string]Info
	logger  *logging.Logger
}

// NewCatalog creates an empty catalog
func NewCatalog(logger *logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Catalog{
		bundles: make(map[string]Info),
		logger:  logger,
	}
}

// Register adds or replaces a bundle
func (c *Catalog) Register(info Info) error {
	if info.Name == "" {
		return ErrNoName
	}
	if err := utils.ValidateBundleName(info.Name); err != nil {
		return err
	}
	if info.Path == "" {
		return fmt.Errorf("%w: %s", ErrNoPath, info.Name)
	}

	c.mu.Lock()
	_, replaced := c.bundles[info.Name]
	c.bundles[info.Name] = info
	c.mu.Unlock()

	c.logger.Debug("Bundle registered",
		zap.String("bundle", info.Name),
		zap.String("path", info.Path),
		zap.Bool("replaced", replaced),
	)
	return nil
}

// Remove deletes a bundle
func (c *Catalog) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.bundles[name]
	delete(c.bundles, name)
	return ok
}

// Get returns a bundle by name
func (c *Catalog) Get(name string) (Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.bundles[name]
	return info, ok
}

// List returns all bundles sorted by name
func (c *Catalog) List() []Info {
	c.mu.RLock()
	out := make([]Info, 0, len(c.bundles))
	for _, info := range c.bundles {
		out = append(out, info)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of bundles
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bundles)
}

// Resolve returns the bundle's name and execution path
func (c *Catalog) Resolve(name string) (string, string, bool) {
	info, ok := c.Get(name)
	if !ok {
		return "", "", false
	}
	return info.Name, info.Path, true
}
