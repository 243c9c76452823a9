package service

import (
	"github.com/pashuvlogs/home-app/internal/domain"
)

// OptionScore is one selectable answer and the score it contributes.
type OptionScore struct {
	Option domain.Option `json:"option"`
	Label  string        `json:"label"`
	Score  int           `json:"score"`
}

// CategoryDefinition describes a scored category and its answers.
type CategoryDefinition struct {
	Category domain.Category `json:"category"`
	Label    string          `json:"label"`
	Options  []OptionScore   `json:"options"`
}

// SectionGuide is the scoring guide for one section.
type SectionGuide struct {
	Section    domain.Section       `json:"section"`
	Part       int                  `json:"part"`
	Categories []CategoryDefinition `json:"categories"`
}

// CategoryScoreTable is the static lookup from (section, category, option) to
// score. The table is built once and never modified.
type CategoryScoreTable struct {
	categories map[domain.Category]CategoryDefinition
	scores     map[domain.Category]map[domain.Option]int
}

// categoryDefinitions is the scoring guide. Every category declared in the
// domain must appear here; TestScoreTable_CoversEveryCategory enforces it.
var categoryDefinitions = []CategoryDefinition{
	{domain.CatRoughSleepingDuration, "Rough sleeping duration", []OptionScore{
		{"not_applicable", "Not applicable", 0},
		{"housed_at_risk", "Housed but at risk", 1},
		{"episodic_under_3m", "Episodic (under 3 months)", 2},
		{"chronic_3_12m", "Chronic (3-12 months)", 3},
		{"long_term_over_12m", "Long-term (over 12 months)", 4},
	}},
	{domain.CatCurrentHousingStatus, "Current housing status", []OptionScore{
		{"stable_temporary", "Stable temporary accommodation", 1},
		{"overcrowding", "Overcrowding", 2},
		{"unsuitable_housing", "Unsuitable housing", 2},
		{"unstable_temporary", "Unstable temporary accommodation", 2},
		{"couch_surfing", "Couch surfing", 3},
		{"emergency_shelter", "Emergency accommodation or shelter", 3},
	}},
	{domain.CatAntiSocialBehaviour, "Anti-social behaviour", []OptionScore{
		{"positive_history", "Positive tenancy history", 0},
		{"minor_issues_resolved", "Minor issues, resolved", 1},
		{"evictions_mitigating", "Previous evictions with mitigating factors", 2},
		{"neighbour_disputes", "Ongoing neighbour disputes", 3},
		{"multiple_evictions", "Multiple evictions", 4},
	}},
	{domain.CatCriminalHistory, "Criminal history", []OptionScore{
		{"no_concerns", "No concerns", 0},
		{"historical_resolved", "Historical, resolved", 1},
		{"drug_related", "Drug-related offending", 3},
		{"intimidation_assault", "Intimidation or assault", 4},
		{"violence", "Violent offending", 4},
	}},
	{domain.CatGangAffiliations, "Gang affiliations", []OptionScore{
		{"no_concerns", "No concerns", 0},
		{"historical_resolved", "Historical, resolved", 1},
		{"recent_association", "Recent association", 3},
		{"gang_member", "Current gang member", 4},
	}},
	{domain.CatThirdPartyAssociation, "Third party association", []OptionScore{
		{"no_concerns", "No concerns", 0},
		{"historical_resolved", "Historical, resolved", 1},
		{"potential_concern", "Potential concern", 2},
		{"known_concern", "Known concern", 4},
	}},
	{domain.CatPropertyDamage, "Property damage", []OptionScore{
		{"no_damage", "No damage", 0},
		{"minor_resolved", "Minor damage, resolved", 1},
		{"serious_repeated", "Serious or repeated damage", 3},
		{"damage_arrears", "Damage with outstanding arrears", 3},
	}},
	{domain.CatRent, "Rent", []OptionScore{
		{"no_concerns", "No concerns", 0},
		{"arrears_history", "History of arrears", 2},
	}},
	{domain.CatTenantResponsibility, "Tenant responsibility", []OptionScore{
		{"strong", "Strong capacity", 0},
		{"moderate", "Moderate capacity", 1},
		{"limited", "Limited capacity", 2},
		{"no_capacity", "No capacity", 3},
	}},
	{domain.CatPhysicalHealth, "Physical health needs", []OptionScore{
		{"no_significant", "No significant needs", 0},
		{"managed_chronic", "Managed chronic condition", 1},
		{"multiple_poorly_managed", "Multiple or poorly managed conditions", 2},
		{"acute_hospital", "Acute or hospital-level needs", 3},
	}},
	{domain.CatMentalHealth, "Mental health", []OptionScore{
		{"no_concerns", "No concerns", 0},
		{"diagnosed_stable", "Diagnosed but stable", 1},
		{"active_challenges", "Active challenges", 2},
		{"co_occurring", "Co-occurring disorders", 3},
	}},
	{domain.CatSubstanceAbuse, "Substance abuse", []OptionScore{
		{"no_concerns", "No concerns", 0},
		{"diagnosed_stable", "Diagnosed but stable", 1},
		{"active_challenges", "Active challenges", 3},
		{"co_occurring", "Co-occurring disorders", 3},
	}},
	{domain.CatSupportNetwork, "Support network strength", []OptionScore{
		{"strong", "Strong support", -3},
		{"moderate", "Moderate support", -2},
		{"minimal", "Minimal support", -1},
		{"none", "No support", 0},
	}},
	{domain.CatAccessibilityNeeds, "Accessibility needs", []OptionScore{
		{"none", "No accessibility needs", -2},
		{"minor", "Minor accessibility needs", -1},
		{"significant", "Significant accessibility needs", 0},
		{"severe", "Severe accessibility needs", 0},
	}},
	{domain.CatCulturalConnections, "Cultural and community connections", []OptionScore{
		{"strong", "Strong connections", -2},
		{"moderate", "Moderate connections", -1},
		{"limited", "Limited connections", 0},
		{"none", "No connections", 0},
	}},
}

// defaultScoreTable is shared; it holds no mutable state.
var defaultScoreTable = buildScoreTable(categoryDefinitions)

// NewCategoryScoreTable returns the scoring table.
func NewCategoryScoreTable() *CategoryScoreTable {
	return defaultScoreTable
}

func buildScoreTable(defs []CategoryDefinition) *CategoryScoreTable {
	t := &CategoryScoreTable{
		categories: make(map[domain.Category]CategoryDefinition, len(defs)),
		scores:     make(map[domain.Category]map[domain.Option]int, len(defs)),
	}
	for _, def := range defs {
		t.categories[def.Category] = def
		scores := make(map[domain.Option]int, len(def.Options))
		for _, opt := range def.Options {
			scores[opt.Option] = opt.Score
		}
		t.scores[def.Category] = scores
	}
	return t
}

// ScoreOf returns the score for the option chosen in a category. Unknown
// sections, categories and options, and categories that do not belong to the
// given section, all score 0.
func (t *CategoryScoreTable) ScoreOf(section domain.Section, category domain.Category, option domain.Option) int {
	if category.Section() != section {
		return 0
	}
	return t.scores[category][option]
}

// IsValidOption reports whether option is a selectable answer for category.
func (t *CategoryScoreTable) IsValidOption(category domain.Category, option domain.Option) bool {
	_, ok := t.scores[category][option]
	return ok
}

// Definition returns the definition of a category.
func (t *CategoryScoreTable) Definition(category domain.Category) (CategoryDefinition, bool) {
	def, ok := t.categories[category]
	return def, ok
}

// Guide returns the full scoring guide in questionnaire order.
func (t *CategoryScoreTable) Guide() []SectionGuide {
	guide := make([]SectionGuide, 0, len(domain.Sections()))
	for _, s := range domain.Sections() {
		sg := SectionGuide{Section: s, Part: s.Part()}
		for _, c := range s.Categories() {
			def := t.categories[c]
			opts := make([]OptionScore, len(def.Options))
			copy(opts, def.Options)
			def.Options = opts
			sg.Categories = append(sg.Categories, def)
		}
		guide = append(guide, sg)
	}
	return guide
}
