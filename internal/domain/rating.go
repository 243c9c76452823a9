// Package domain contains the core entities of the housing suitability assessment:
// ratings, roles, the assessment aggregate and its workflow status, the error
// taxonomy, and the collaborator contracts the workflow depends on.
package domain

import (
	"errors"
	"fmt"
)

// Rating is the three-level risk/need scale used for every computed rating.
// Ratings are totally ordered: Low < Medium < High.
type Rating string

const (
	RatingLow    Rating = "Low"
	RatingMedium Rating = "Medium"
	RatingHigh   Rating = "High"
)

// ErrInvalidRating is returned when a string does not name a known rating.
var ErrInvalidRating = errors.New("invalid rating")

// ParseRating converts a persisted or user-supplied value into a Rating.
func ParseRating(s string) (Rating, error) {
	switch Rating(s) {
	case RatingLow, RatingMedium, RatingHigh:
		return Rating(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
}

// IsValid reports whether r is one of the three known ratings.
func (r Rating) IsValid() bool {
	return r.rank() > 0
}

// String returns the string representation of the rating.
func (r Rating) String() string {
	return string(r)
}

// rank gives the position of r in the total order. Unknown ratings rank 0,
// below Low.
func (r Rating) rank() int {
	switch r {
	case RatingLow:
		return 1
	case RatingMedium:
		return 2
	case RatingHigh:
		return 3
	default:
		return 0
	}
}

// Compare returns -1, 0 or 1 as r is less than, equal to, or greater than other.
func (r Rating) Compare(other Rating) int {
	a, b := r.rank(), other.rank()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MoreSevereThan reports whether r ranks strictly above other.
func (r Rating) MoreSevereThan(other Rating) bool {
	return r.Compare(other) > 0
}

// MaxRating returns the most severe of the given ratings. It returns the empty
// rating when called with no arguments.
func MaxRating(ratings ...Rating) Rating {
	var worst Rating
	for _, r := range ratings {
		if r.Compare(worst) > 0 {
			worst = r
		}
	}
	return worst
}

// LogFields returns structured logging fields for audit trails.
func (r Rating) LogFields() map[string]any {
	return map[string]any{
		"rating":   string(r),
		"is_valid": r.IsValid(),
	}
}
