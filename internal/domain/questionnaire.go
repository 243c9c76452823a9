package domain

// Section groups the scored categories of one questionnaire part.
type Section string

const (
	SectionHousingNeed     Section = "housing_need"
	SectionTenancy         Section = "tenancy"
	SectionHealthWellbeing Section = "health_wellbeing"
	SectionSupportNetworks Section = "support_networks"
)

// Part returns the questionnaire part number that holds the section.
func (s Section) Part() int {
	switch s {
	case SectionHousingNeed:
		return 2
	case SectionTenancy:
		return 3
	case SectionHealthWellbeing:
		return 4
	case SectionSupportNetworks:
		return 5
	default:
		return 0
	}
}

// Category is a single-select scored question. The string value is the form
// field key used in the persisted form data.
type Category string

const (
	// Part 2: housing need
	CatRoughSleepingDuration Category = "roughSleepingDuration"
	CatCurrentHousingStatus  Category = "currentHousingStatus"

	// Part 3: tenancy challenge
	CatAntiSocialBehaviour   Category = "antiSocialBehaviour"
	CatCriminalHistory       Category = "criminalHistory"
	CatGangAffiliations      Category = "gangAffiliations"
	CatThirdPartyAssociation Category = "thirdPartyAssociation"
	CatPropertyDamage        Category = "propertyDamage"
	CatRent                  Category = "rent"
	CatTenantResponsibility  Category = "tenantResponsibility"

	// Part 4: health and wellbeing
	CatPhysicalHealth Category = "physicalHealth"
	CatMentalHealth   Category = "mentalHealth"
	CatSubstanceAbuse Category = "substanceAbuse"

	// Part 5: support networks (mitigation)
	CatSupportNetwork      Category = "supportNetwork"
	CatAccessibilityNeeds  Category = "accessibilityNeeds"
	CatCulturalConnections Category = "culturalConnections"
)

// sectionCategories lists the categories of each section in display order.
var sectionCategories = map[Section][]Category{
	SectionHousingNeed: {CatRoughSleepingDuration, CatCurrentHousingStatus},
	SectionTenancy: {
		CatAntiSocialBehaviour, CatCriminalHistory, CatGangAffiliations,
		CatThirdPartyAssociation, CatPropertyDamage, CatRent, CatTenantResponsibility,
	},
	SectionHealthWellbeing: {CatPhysicalHealth, CatMentalHealth, CatSubstanceAbuse},
	SectionSupportNetworks: {CatSupportNetwork, CatAccessibilityNeeds, CatCulturalConnections},
}

// Sections returns every scored section in questionnaire order.
func Sections() []Section {
	return []Section{SectionHousingNeed, SectionTenancy, SectionHealthWellbeing, SectionSupportNetworks}
}

// Categories returns the categories of the section in display order.
func (s Section) Categories() []Category {
	cats := sectionCategories[s]
	out := make([]Category, len(cats))
	copy(out, cats)
	return out
}

// Section returns the section the category belongs to, or "" when unknown.
func (c Category) Section() Section {
	for s, cats := range sectionCategories {
		for _, cat := range cats {
			if cat == c {
				return s
			}
		}
	}
	return ""
}

// Option is the identifier of a selectable answer within a category.
type Option string

// FinalRecommendation is the assessor's part 8 outcome.
type FinalRecommendation string

const (
	RecommendProceed               FinalRecommendation = "proceed_without_conditions"
	RecommendProceedWithConditions FinalRecommendation = "proceed_with_conditions"
	RecommendDefer                 FinalRecommendation = "defer"
	RecommendDecline               FinalRecommendation = "decline"
)

// IsValid reports whether the recommendation is one of the known outcomes.
func (f FinalRecommendation) IsValid() bool {
	switch f {
	case RecommendProceed, RecommendProceedWithConditions, RecommendDefer, RecommendDecline:
		return true
	default:
		return false
	}
}

// PartCount is the number of questionnaire parts.
const PartCount = 8
