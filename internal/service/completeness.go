package service

import (
	"fmt"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// part1RequiredFields are the client detail fields a submission needs.
var part1RequiredFields = []string{"applicantName", "dateOfAssessment", "assessorName"}

// CompletenessValidator enumerates every missing requirement for submission.
type CompletenessValidator struct {
	table *CategoryScoreTable
}

// NewCompletenessValidator creates a new completeness validator
func NewCompletenessValidator(table *CategoryScoreTable) *CompletenessValidator {
	if table == nil {
		table = NewCategoryScoreTable()
	}
	return &CompletenessValidator{table: table}
}

// Validate returns a ValidationError listing every unmet requirement, or nil
// when the form is complete.
func (v *CompletenessValidator) Validate(fd domain.FormData) error {
	verr := &domain.ValidationError{}

	for _, field := range part1RequiredFields {
		if fd.String(1, field) == "" {
			verr.Add(fieldPath(1, field), "is required")
		}
	}
	if d := fd.String(1, "dateOfAssessment"); d != "" {
		if _, err := domain.ParseDate(d); err != nil {
			verr.Add(fieldPath(1, "dateOfAssessment"), "must be a YYYY-MM-DD date")
		}
	}

	for _, s := range domain.Sections() {
		for _, c := range s.Categories() {
			opt := fd.Selection(c)
			switch {
			case opt == "":
				verr.Add(fieldPath(s.Part(), string(c)), "is required")
			case !v.table.IsValidOption(c, opt):
				verr.Add(fieldPath(s.Part(), string(c)), fmt.Sprintf("unknown option %q", opt))
			}
		}
	}

	rec := domain.FinalRecommendation(fd.String(8, "finalRecommendation"))
	switch {
	case rec == "":
		verr.Add(fieldPath(8, "finalRecommendation"), "is required")
	case !rec.IsValid():
		verr.Add(fieldPath(8, "finalRecommendation"), fmt.Sprintf("unknown recommendation %q", rec))
	case rec == domain.RecommendProceedWithConditions && fd.String(8, "conditions") == "":
		verr.Add(fieldPath(8, "conditions"), "are required when proceeding with conditions")
	}

	return verr.OrNil()
}

func fieldPath(part int, field string) string {
	return domain.PartKey(part) + "." + field
}
