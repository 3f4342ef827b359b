package story

import "strings"

// Category is a story theme selected from the submitter's keywords.
type Category string

const (
	CategoryMedical   Category = "medical"
	CategoryEducation Category = "education"
	CategoryEmergency Category = "emergency"
	CategoryChild     Category = "child"
	CategoryFamily    Category = "family"
	CategoryOther     Category = "other"
)

// Rule pairs a keyword list with the template and cover image used when one
// of the keywords appears in the input.
type Rule struct {
	Category Category
	Keywords []string
	// Template takes one verb: a " (keywords)" detail, or "" when none were given.
	Template string
	ImageURL string
}

// Rules is an ordered rule list; the first matching rule wins.
type Rules []Rule

// Match returns the first rule whose keyword list matches text, or the
// catch-all rule when none does. Matching is case-insensitive substring.
func (rs Rules) Match(text string) Rule {
	q := strings.ToLower(text)
	for _, r := range rs {
		if matchesKeywords(r, q) {
			return r
		}
	}
	return rs.Get(CategoryOther)
}

// Get returns the rule for a category, or the last rule if it is absent.
func (rs Rules) Get(c Category) Rule {
	for _, r := range rs {
		if r.Category == c {
			return r
		}
	}
	return rs[len(rs)-1]
}

func matchesKeywords(r Rule, q string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// DefaultRules returns the built-in categories in priority order.
func DefaultRules() Rules {
	return Rules{
		{
			Category: CategoryMedical,
			Keywords: []string{"medical", "health", "treatment", "surgery"},
			Template: "My family is facing a medical crisis%s. The treatment we need is far beyond what we can afford, " +
				"and every day of delay makes recovery harder. Your support will pay for the care that can save a life. " +
				"Please help us through this.",
			ImageURL: "https://images.unsplash.com/photo-1551190822-a9333d879b1f?w=400&h=300&fit=crop",
		},
		{
			Category: CategoryEducation,
			Keywords: []string{"education", "school", "study", "student"},
			Template: "Education is the only way out of hardship for us%s. The fees and books are more than our family earns " +
				"in months. With your help a bright student can stay in school and build a future that lifts everyone around them.",
			ImageURL: "https://images.unsplash.com/photo-1427504494785-3a9ca7044f45?w=400&h=300&fit=crop",
		},
		{
			Category: CategoryEmergency,
			Keywords: []string{"emergency", "urgent", "accident"},
			Template: "An emergency turned our lives upside down overnight%s. We had no savings to fall back on and the bills " +
				"are mounting every hour. We urgently need your help to get through the next few weeks. Any amount makes a difference.",
			ImageURL: "https://images.unsplash.com/photo-1584464491033-06628f3a6b7b?w=400&h=300&fit=crop",
		},
		{
			Category: CategoryChild,
			Keywords: []string{"child", "children", "kid"},
			Template: "A child's future depends on what happens now%s. Little ones should not carry the weight of hardship, " +
				"but without help they will. Your kindness can give them the safety, care and chance they deserve.",
			ImageURL: "https://images.unsplash.com/photo-1488521787991-ed7bbaae773c?w=400&h=300&fit=crop",
		},
		{
			Category: CategoryFamily,
			Keywords: []string{"family", "home", "house"},
			Template: "Our family is struggling to keep a roof over our heads%s. We have worked hard all our lives, " +
				"but this setback is more than we can handle alone. Your help will keep our home and our family together.",
			ImageURL: "https://images.unsplash.com/photo-1511895426328-dc8714191300?w=400&h=300&fit=crop",
		},
		{
			Category: CategoryOther,
			Template: "We are going through a difficult time%s and have nowhere else to turn. Your generosity, however small, " +
				"will help us get back on our feet. Thank you for reading our story and for considering a donation.",
			ImageURL: "https://images.unsplash.com/photo-1469474968028-56623f02e42e?w=400&h=300&fit=crop",
		},
	}
}

// FallbackImage returns the category cover image for a campaign submitted
// without a photo.
func FallbackImage(text string) string {
	return DefaultRules().Match(text).ImageURL
}
