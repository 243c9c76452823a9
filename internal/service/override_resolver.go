package service

import (
	"github.com/pashuvlogs/home-app/internal/domain"
)

// Resolution is the outcome of applying an optional override to a computed
// rating.
type Resolution struct {
	// Computed is the rating produced by the scoring engine.
	Computed domain.Rating `json:"computed"`
	// Effective is what users see: the adjusted value when overridden.
	Effective domain.Rating `json:"effective"`
	// Determining routes the approval pathway: the most severe of the
	// override's original and adjusted values and the current computation.
	Determining domain.Rating `json:"determining"`
	Overridden  bool          `json:"overridden"`
}

// OverrideResolver separates the displayed rating from the rating used to
// route approval.
type OverrideResolver struct{}

// NewOverrideResolver creates a new override resolver
func NewOverrideResolver() *OverrideResolver {
	return &OverrideResolver{}
}

// Resolve combines the computed rating with an optional override. An override
// can lower the displayed rating but never the routing rating: routing uses
// the worst case so an override cannot bypass a higher approval tier. The
// current computed rating is included so answers changed after the override
// cannot route below what they now score.
func (r *OverrideResolver) Resolve(computed domain.Rating, override *domain.Override) Resolution {
	if override == nil || !override.AdjustedScore.IsValid() {
		return Resolution{Computed: computed, Effective: computed, Determining: computed}
	}
	return Resolution{
		Computed:    computed,
		Effective:   override.AdjustedScore,
		Determining: domain.MaxRating(override.OriginalScore, override.AdjustedScore, computed),
		Overridden:  true,
	}
}

// ResolveAssessment resolves the assessment's overall rating and override.
func (r *OverrideResolver) ResolveAssessment(a *domain.Assessment) Resolution {
	return r.Resolve(a.Ratings.OverallMatchChallenge(), a.Override)
}
