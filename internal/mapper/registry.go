package mapper

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"dteintake/internal/logger"
	"dteintake/pkg/models"
)

// Registry binds formats to mappers with one optional fallback.
type Registry struct {
	mu       sync.RWMutex
	mappers  map[models.Format]Mapper
	fallback Mapper
	log      zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		mappers: make(map[models.Format]Mapper),
		log:     logger.WithComponent("mapper-registry"),
	}
}

// NewDefaultRegistry binds the official DTE and PDF formats to their mappers
// and routes everything else through the generic fallback.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(models.FormatDTEStandard, NewDTEStandardMapper())
	r.Register(models.FormatPDFExtracted, NewPDFExtractedMapper())
	r.SetFallback(NewGenericFallbackMapper())
	return r
}

func (r *Registry) Register(format models.Format, m Mapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappers[format] = m
	r.log.Debug().Str("format", string(format)).Str("mapper", m.Name()).Msg("Registered mapper")
}

func (r *Registry) SetFallback(m Mapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = m
}

// GetMapper returns the mapper bound to format, else the fallback.
func (r *Registry) GetMapper(format models.Format) (Mapper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.mappers[format]; ok {
		return m, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, &MapperNotFoundError{Format: format}
}

// Bindings lists format -> mapper name, sorted by format.
func (r *Registry) Bindings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.mappers))
	for format, m := range r.mappers {
		out = append(out, fmt.Sprintf("%s=%s", format, m.Name()))
	}
	sort.Strings(out)
	return out
}

// Catalog creates mappers by name.
type Catalog map[string]func() Mapper

// DefaultCatalog knows every built-in mapper.
func DefaultCatalog() Catalog {
	return Catalog{
		NameDTEStandard:  func() Mapper { return NewDTEStandardMapper() },
		NameGeneric:      func() Mapper { return NewGenericFallbackMapper() },
		NamePDFExtracted: func() Mapper { return NewPDFExtractedMapper() },
	}
}

// New builds the named mapper.
func (c Catalog) New(name string) (Mapper, error) {
	factory, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("unknown mapper %q", name)
	}
	return factory(), nil
}
