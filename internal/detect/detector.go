// Package detect classifies raw invoice documents by scoring them against a
// registry of format fingerprints.
//
// Scoring is pure: the same document and the same registrations always
// produce the same DetectionResult. When two fingerprints reach the same
// score the one registered first wins.
package detect

import (
	"sync"

	"github.com/rs/zerolog"

	"dteintake/internal/docpath"
	"dteintake/internal/logger"
	"dteintake/pkg/models"
)

// RootTotalCandidates are tried after a fingerprint's explicit total keys.
var RootTotalCandidates = []string{"total", "totalPagar", "total_pagar", "monto_total", "montoTotal", "grand_total"}

// NestedTotalFallback is the last total key tried.
const NestedTotalFallback = "resumen.totalPagar"

// Detector scores documents against registered fingerprints.
type Detector struct {
	mu           sync.RWMutex
	fingerprints []Fingerprint
	log          zerolog.Logger
}

// NewDetector creates a detector with the given fingerprints in
// registration order.
func NewDetector(fingerprints ...Fingerprint) *Detector {
	d := &Detector{log: logger.WithComponent("detector")}
	for _, fp := range fingerprints {
		d.Register(fp)
	}
	return d
}

// NewDefaultDetector registers DefaultFingerprints.
func NewDefaultDetector() *Detector {
	return NewDetector(DefaultFingerprints()...)
}

// Register adds a fingerprint. Registering a format again replaces the
// earlier fingerprint but keeps its position for tie-breaking.
func (d *Detector) Register(fp Fingerprint) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := make([]Fingerprint, len(d.fingerprints), len(d.fingerprints)+1)
	copy(next, d.fingerprints)
	for i, existing := range next {
		if existing.TargetFormat() == fp.TargetFormat() {
			next[i] = fp
			d.fingerprints = next
			d.log.Debug().Str("format", string(fp.TargetFormat())).Msg("Replaced fingerprint")
			return
		}
	}
	d.fingerprints = append(next, fp)
	d.log.Debug().Str("format", string(fp.TargetFormat())).Int("position", len(next)).Msg("Registered fingerprint")
}

// Formats lists the registered formats in registration order.
func (d *Detector) Formats() []models.Format {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Format, 0, len(d.fingerprints))
	for _, fp := range d.fingerprints {
		out = append(out, fp.TargetFormat())
	}
	return out
}

// Detect classifies raw. Anything that is not a non-empty JSON object is
// UNKNOWN with zero confidence. A best score below the LOW threshold also
// yields UNKNOWN.
func (d *Detector) Detect(raw any) models.DetectionResult {
	doc, ok := raw.(map[string]any)
	if !ok || len(doc) == 0 {
		return models.Unknown()
	}

	d.mu.RLock()
	fingerprints := d.fingerprints
	d.mu.RUnlock()

	result := models.DetectionResult{Scores: make(map[models.Format]float64, len(fingerprints))}

	var best Fingerprint
	bestScore := 0.0
	for _, fp := range fingerprints {
		s := score(fp, doc)
		result.Scores[fp.TargetFormat()] = s
		// strictly greater: earlier registrations keep ties
		if best == nil || s > bestScore {
			best, bestScore = fp, s
		}
	}

	result.Confidence = bestScore
	result.Level = models.LevelFor(bestScore)
	if best == nil || result.Level == models.ConfidenceNone {
		result.Format = models.FormatUnknown
		result.Level = models.ConfidenceNone
		result.Confidence = 0
		result.TotalKey = resolveTotalKey(doc, nil)
	} else {
		result.Format = best.TargetFormat()
		result.ItemsKey = resolveItemsKey(doc, best)
		result.TotalKey = resolveTotalKey(doc, best)
	}

	d.log.Debug().
		Str("format", string(result.Format)).
		Float64("confidence", result.Confidence).
		Str("level", string(result.Level)).
		Interface("scores", result.Scores).
		Msg("Detection completed")

	return result
}

func resolveItemsKey(doc map[string]any, fp Fingerprint) string {
	var candidates []string
	switch fp := fp.(type) {
	case StructuralFingerprint:
		if fp.ItemsKey != "" {
			candidates = []string{fp.ItemsKey}
		}
	case HeuristicFingerprint:
		candidates = fp.ItemsKeys
	}
	for _, key := range candidates {
		if v, ok := docpath.Lookup(doc, key); ok && docpath.Kind(v) == KindArray {
			return key
		}
	}
	return ""
}

// resolveTotalKey tries explicit alternatives, then root candidates, then
// the nested DTE summary total.
func resolveTotalKey(doc map[string]any, fp Fingerprint) string {
	var candidates []string
	switch fp := fp.(type) {
	case StructuralFingerprint:
		candidates = append(candidates, fp.TotalKeys...)
	case HeuristicFingerprint:
		candidates = append(candidates, fp.TotalKeys...)
	}
	candidates = append(candidates, RootTotalCandidates...)
	candidates = append(candidates, NestedTotalFallback)

	for _, key := range candidates {
		if docpath.Has(doc, key) {
			return key
		}
	}
	return ""
}
