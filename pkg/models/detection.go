package models

// Format identifies a recognized input schema.
type Format string

const (
	FormatDTEStandard  Format = "DTE_STANDARD"  // official Ministerio de Hacienda JSON
	FormatDTEVariant   Format = "DTE_VARIANT"   // flattened exports from accounting software
	FormatPDFExtracted Format = "PDF_EXTRACTED" // synthesized from PDF text
	FormatGenericFlat  Format = "GENERIC_FLAT"
	FormatUnknown      Format = "UNKNOWN"
)

// Valid reports whether f names a recognizable format. UNKNOWN is not one.
func (f Format) Valid() bool {
	switch f {
	case FormatDTEStandard, FormatDTEVariant, FormatPDFExtracted, FormatGenericFlat:
		return true
	}
	return false
}

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
	ConfidenceNone   ConfidenceLevel = "NONE"
)

// Level thresholds, inclusive.
const (
	HighThreshold   = 0.90
	MediumThreshold = 0.70
	LowThreshold    = 0.50
)

// LevelFor maps a score in [0,1] to its confidence level.
func LevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= HighThreshold:
		return ConfidenceHigh
	case score >= MediumThreshold:
		return ConfidenceMedium
	case score >= LowThreshold:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// DetectionResult is the outcome of classifying one raw document.
type DetectionResult struct {
	Format     Format             `json:"format"`
	Confidence float64            `json:"confidence"`
	Level      ConfidenceLevel    `json:"confidence_level"`
	Scores     map[Format]float64 `json:"scores"`
	ItemsKey   string             `json:"items_key,omitempty"`
	TotalKey   string             `json:"total_key,omitempty"`
}

// Unknown returns the result used when nothing could be scored.
func Unknown() DetectionResult {
	return DetectionResult{
		Format: FormatUnknown,
		Level:  ConfidenceNone,
		Scores: map[Format]float64{},
	}
}
