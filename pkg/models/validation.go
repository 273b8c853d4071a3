package models

import "strings"

type IssueLevel string

const (
	LevelError   IssueLevel = "ERROR"
	LevelWarning IssueLevel = "WARNING"
	LevelInfo    IssueLevel = "INFO"
)

type ValidationIssue struct {
	Level       IssueLevel `json:"level"`
	Field       string     `json:"field"`
	Message     string     `json:"message"`
	Expected    string     `json:"expected,omitempty"`
	Actual      string     `json:"actual,omitempty"`
	DuplicateOf string     `json:"duplicate_of,omitempty"` // source file of the earlier invoice
}

// ValidationResult aggregates every issue found for one invoice.
type ValidationResult struct {
	IsValid      bool              `json:"is_valid"`
	Issues       []ValidationIssue `json:"issues"`
	ErrorCount   int               `json:"error_count"`
	WarningCount int               `json:"warning_count"`
	InfoCount    int               `json:"info_count"`
}

// NewValidationResult counts the issues and derives IsValid.
func NewValidationResult(issues []ValidationIssue) *ValidationResult {
	r := &ValidationResult{Issues: issues}
	if r.Issues == nil {
		r.Issues = []ValidationIssue{}
	}
	for _, issue := range r.Issues {
		switch issue.Level {
		case LevelError:
			r.ErrorCount++
		case LevelWarning:
			r.WarningCount++
		case LevelInfo:
			r.InfoCount++
		}
	}
	r.IsValid = r.ErrorCount == 0
	return r
}

func (r *ValidationResult) Errors() []ValidationIssue {
	return r.byLevel(LevelError)
}

func (r *ValidationResult) Warnings() []ValidationIssue {
	return r.byLevel(LevelWarning)
}

func (r *ValidationResult) byLevel(level IssueLevel) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Level == level {
			out = append(out, issue)
		}
	}
	return out
}

// Reason joins the error messages into a single rejection reason.
func (r *ValidationResult) Reason() string {
	errs := r.Errors()
	msgs := make([]string, 0, len(errs))
	for _, issue := range errs {
		msgs = append(msgs, issue.Field+": "+issue.Message)
	}
	return strings.Join(msgs, "; ")
}
