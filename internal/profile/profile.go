// Package profile loads jurisdiction profiles: the fingerprints, mapper
// bindings and validation tolerances that make up one deployment, kept as
// data instead of code.
package profile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"dteintake/internal/detect"
	"dteintake/internal/invoice"
	"dteintake/internal/logger"
	"dteintake/internal/mapper"
	"dteintake/pkg/models"
)

//go:embed schema.json
var schemaJSON []byte

// ErrInvalidProfile is wrapped by every load failure caused by the profile
// contents rather than I/O.
var ErrInvalidProfile = errors.New("invalid profile")

const (
	kindStructural = "structural"
	kindHeuristic  = "heuristic"
)

var identityPolicies = map[string]mapper.IdentityPolicy{
	"number_or_total":  mapper.RequireNumberOrTotal,
	"number":           mapper.RequireNumber,
	"number_and_total": mapper.RequireNumberAndTotal,
}

type fileFormat struct {
	Name         string            `yaml:"name"`
	Fingerprints []fingerprintSpec `yaml:"fingerprints"`
	Mappers      mapperSpec        `yaml:"mappers"`
	Validation   validationSpec    `yaml:"validation"`
}

type fingerprintSpec struct {
	Format       string              `yaml:"format"`
	Kind         string              `yaml:"kind"`
	RequiredKeys []string            `yaml:"required_keys"`
	NestedChecks map[string][]string `yaml:"nested_checks"`
	OptionalKeys []string            `yaml:"optional_keys"`
	ItemsKey     string              `yaml:"items_key"`
	ItemsKeys    []string            `yaml:"items_keys"`
	TotalKeys    []string            `yaml:"total_keys"`
	TypeChecks   []detect.TypeCheck  `yaml:"type_checks"`
	Synonyms     map[string][]string `yaml:"synonyms"`
}

type mapperSpec struct {
	Bindings       map[string]string `yaml:"bindings"`
	Fallback       string            `yaml:"fallback"`
	IdentityPolicy string            `yaml:"identity_policy"`
}

// validationSpec fields are pointers so an omitted key keeps the base value.
type validationSpec struct {
	VATRate            *float64 `yaml:"vat_rate"`
	AmountTolerance    *float64 `yaml:"amount_tolerance"`
	TaxTolerance       *float64 `yaml:"tax_tolerance"`
	MaxAgeYears        *int     `yaml:"max_age_years"`
	FacturaIncludesVAT *bool    `yaml:"factura_includes_vat"`
}

// Profile is a validated jurisdiction profile.
type Profile struct {
	Name         string
	fingerprints []detect.Fingerprint
	bindings     map[models.Format]string
	fallback     string
	policy       mapper.IdentityPolicy
	validation   validationSpec
	catalog      mapper.Catalog
}

// Default returns the built-in Salvadoran profile.
func Default() *Profile {
	return &Profile{
		Name:         "sv-default",
		fingerprints: detect.DefaultFingerprints(),
		bindings:     defaultBindings(),
		fallback:     mapper.NameGeneric,
		policy:       mapper.DefaultIdentityPolicy,
		catalog:      mapper.DefaultCatalog(),
	}
}

func defaultBindings() map[models.Format]string {
	return map[models.Format]string{
		models.FormatDTEStandard:  mapper.NameDTEStandard,
		models.FormatPDFExtracted: mapper.NamePDFExtracted,
	}
}

// Load reads and parses the profile at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Parse validates data against the profile schema and builds a Profile.
// Sections left out of the document fall back to the built-in defaults.
func Parse(data []byte) (*Profile, error) {
	log := logger.WithComponent("profile")

	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	p := Default()
	if f.Name != "" {
		p.Name = f.Name
	}

	if len(f.Fingerprints) > 0 {
		fps := make([]detect.Fingerprint, 0, len(f.Fingerprints))
		for i, spec := range f.Fingerprints {
			fp, err := spec.build()
			if err != nil {
				return nil, fmt.Errorf("%w: fingerprints[%d]: %v", ErrInvalidProfile, i, err)
			}
			fps = append(fps, fp)
		}
		p.fingerprints = fps
	}

	if len(f.Mappers.Bindings) > 0 {
		declared := make(map[models.Format]bool, len(p.fingerprints))
		for _, fp := range p.fingerprints {
			declared[fp.TargetFormat()] = true
		}
		p.bindings = make(map[models.Format]string, len(f.Mappers.Bindings))
		for format, name := range f.Mappers.Bindings {
			ft := models.Format(format)
			if !ft.Valid() && !declared[ft] {
				return nil, fmt.Errorf("%w: mappers.bindings: unknown format %q", ErrInvalidProfile, format)
			}
			if _, ok := p.catalog[name]; !ok {
				return nil, fmt.Errorf("%w: mappers.bindings: unknown mapper %q for %s", ErrInvalidProfile, name, format)
			}
			p.bindings[ft] = name
		}
	}

	if f.Mappers.Fallback != "" {
		if _, ok := p.catalog[f.Mappers.Fallback]; !ok {
			return nil, fmt.Errorf("%w: mappers.fallback: unknown mapper %q", ErrInvalidProfile, f.Mappers.Fallback)
		}
		p.fallback = f.Mappers.Fallback
	}

	if f.Mappers.IdentityPolicy != "" {
		p.policy = identityPolicies[f.Mappers.IdentityPolicy]
	}
	p.validation = f.Validation

	log.Debug().
		Str("profile", p.Name).
		Int("fingerprints", len(p.fingerprints)).
		Int("bindings", len(p.bindings)).
		Str("fallback", p.fallback).
		Msg("Parsed profile")

	return p, nil
}

// validateSchema checks the YAML document against the embedded JSON Schema.
// YAML is normalized through JSON so the validator sees plain JSON values.
func validateSchema(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profile.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("failed to add profile schema: %w", err)
	}
	schema, err := compiler.Compile("profile.schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile profile schema: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: document is empty", ErrInvalidProfile)
	}

	asJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	var v any
	if err := json.Unmarshal(asJSON, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

func (s fingerprintSpec) build() (detect.Fingerprint, error) {
	// any schema-valid name declares a new format; UNKNOWN stays reserved
	format := models.Format(s.Format)
	if format == models.FormatUnknown {
		return nil, fmt.Errorf("format %q is reserved", s.Format)
	}

	switch s.Kind {
	case kindStructural:
		return detect.StructuralFingerprint{
			Format:       format,
			RequiredKeys: s.RequiredKeys,
			NestedChecks: s.NestedChecks,
			OptionalKeys: s.OptionalKeys,
			ItemsKey:     s.ItemsKey,
			TotalKeys:    s.TotalKeys,
			TypeChecks:   s.TypeChecks,
		}, nil
	case kindHeuristic:
		return detect.HeuristicFingerprint{
			Format:    format,
			Synonyms:  s.Synonyms,
			ItemsKeys: s.ItemsKeys,
			TotalKeys: s.TotalKeys,
		}, nil
	}
	return nil, fmt.Errorf("unknown fingerprint kind %q", s.Kind)
}

// Detector builds a detector with the profile's fingerprints in declaration
// order.
func (p *Profile) Detector() *detect.Detector {
	return detect.NewDetector(p.fingerprints...)
}

// Registry builds a mapper registry from the profile bindings.
func (p *Profile) Registry() (*mapper.Registry, error) {
	r := mapper.NewRegistry()

	formats := make([]string, 0, len(p.bindings))
	for format := range p.bindings {
		formats = append(formats, string(format))
	}
	sort.Strings(formats)

	for _, format := range formats {
		m, err := p.newMapper(p.bindings[models.Format(format)])
		if err != nil {
			return nil, err
		}
		r.Register(models.Format(format), m)
	}

	if p.fallback != "" {
		m, err := p.newMapper(p.fallback)
		if err != nil {
			return nil, err
		}
		r.SetFallback(m)
	}
	return r, nil
}

func (p *Profile) newMapper(name string) (mapper.Mapper, error) {
	m, err := p.catalog.New(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if g, ok := m.(*mapper.GenericFallbackMapper); ok {
		g.Policy = p.policy
	}
	return m, nil
}

// ValidatorConfig overlays the profile's validation overrides on base.
func (p *Profile) ValidatorConfig(base invoice.ValidatorConfig) invoice.ValidatorConfig {
	cfg := base
	if v := p.validation.VATRate; v != nil {
		cfg.VATRate = decimal.NewFromFloat(*v)
	}
	if v := p.validation.AmountTolerance; v != nil {
		cfg.AmountTolerance = decimal.NewFromFloat(*v)
	}
	if v := p.validation.TaxTolerance; v != nil {
		cfg.TaxTolerance = decimal.NewFromFloat(*v)
	}
	if v := p.validation.MaxAgeYears; v != nil {
		cfg.MaxAgeYears = *v
	}
	if v := p.validation.FacturaIncludesVAT; v != nil {
		cfg.FacturaIncludesVAT = *v
	}
	return cfg
}
