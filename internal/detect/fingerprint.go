package detect

import (
	"math"
	"strings"

	"dteintake/internal/docpath"
	"dteintake/pkg/models"
)

// Fingerprint describes how to recognize one input format. It is a closed
// set: StructuralFingerprint or HeuristicFingerprint.
type Fingerprint interface {
	TargetFormat() models.Format
	isFingerprint()
}

// Type check kinds. KindPresent only requires the path to resolve.
const (
	KindNumber  = "number"
	KindString  = "string"
	KindArray   = "array"
	KindObject  = "object"
	KindBool    = "bool"
	KindPresent = "present"
)

type TypeCheck struct {
	Path string `yaml:"path"`
	Kind string `yaml:"kind"`
}

// passes reports whether the value at Path has the expected kind. Numeric
// strings do not count as numbers.
func (tc TypeCheck) passes(doc map[string]any) bool {
	v, ok := docpath.Lookup(doc, tc.Path)
	if !ok {
		return false
	}
	if tc.Kind == KindPresent {
		return true
	}
	if tc.Kind == KindBool {
		b, isBool := v.(bool)
		return isBool && b
	}
	return docpath.Kind(v) == tc.Kind
}

// StructuralFingerprint scores documents by the presence and shape of known
// keys.
type StructuralFingerprint struct {
	Format       models.Format
	RequiredKeys []string
	NestedChecks map[string][]string // parent key -> child keys
	OptionalKeys []string
	ItemsKey     string
	TotalKeys    []string // explicit total alternatives, dotted paths allowed
	TypeChecks   []TypeCheck
}

func (f StructuralFingerprint) TargetFormat() models.Format { return f.Format }
func (StructuralFingerprint) isFingerprint()                {}

// HeuristicFingerprint scores documents by how many synonym categories have
// at least one matching root key. Matching ignores case.
type HeuristicFingerprint struct {
	Format    models.Format
	Synonyms  map[string][]string // category -> root keys
	ItemsKeys []string
	TotalKeys []string
}

func (f HeuristicFingerprint) TargetFormat() models.Format { return f.Format }
func (HeuristicFingerprint) isFingerprint()                {}

// Structural score weights.
const (
	weightRequired = 0.4
	weightNested   = 0.3
	weightOptional = 0.1
	weightTypes    = 0.2
)

func score(fp Fingerprint, doc map[string]any) float64 {
	switch fp := fp.(type) {
	case StructuralFingerprint:
		return scoreStructural(fp, doc)
	case HeuristicFingerprint:
		return scoreHeuristic(fp, doc)
	default:
		return 0
	}
}

func scoreStructural(fp StructuralFingerprint, doc map[string]any) float64 {
	required := fraction(fp.RequiredKeys, 0, func(k string) bool { return docpath.Has(doc, k) })
	optional := fraction(fp.OptionalKeys, 0, func(k string) bool { return docpath.Has(doc, k) })

	nested := 1.0
	if len(fp.NestedChecks) > 0 {
		sum := 0.0
		for parent, children := range fp.NestedChecks {
			child := docpath.AsMap(doc[parent])
			if child == nil {
				continue
			}
			sum += fraction(children, 1, func(k string) bool { return docpath.Has(child, k) })
		}
		nested = sum / float64(len(fp.NestedChecks))
	}

	types := 0.0
	if len(fp.TypeChecks) > 0 {
		passed := 0
		for _, tc := range fp.TypeChecks {
			if tc.passes(doc) {
				passed++
			}
		}
		types = float64(passed) / float64(len(fp.TypeChecks))
	}

	total := weightRequired*required + weightNested*nested + weightOptional*optional + weightTypes*types
	return roundScore(math.Min(total, 1.0))
}

func scoreHeuristic(fp HeuristicFingerprint, doc map[string]any) float64 {
	if len(fp.Synonyms) == 0 {
		return 0
	}
	keys := make(map[string]struct{}, len(doc))
	for k := range doc {
		keys[strings.ToLower(k)] = struct{}{}
	}

	matched := 0
	for _, synonyms := range fp.Synonyms {
		for _, s := range synonyms {
			if _, ok := keys[strings.ToLower(s)]; ok {
				matched++
				break
			}
		}
	}
	return roundScore(float64(matched) / float64(len(fp.Synonyms)))
}

func fraction(keys []string, empty float64, present func(string) bool) float64 {
	if len(keys) == 0 {
		return empty
	}
	n := 0
	for _, k := range keys {
		if present(k) {
			n++
		}
	}
	return float64(n) / float64(len(keys))
}

// roundScore keeps 0.4+0.3+0.2 from landing just below a threshold.
func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}
