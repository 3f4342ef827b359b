package story

import (
	"testing"
)

func TestDefaultRules_EndWithCatchAll(t *testing.T) {
	rules := DefaultRules()
	if len(rules) == 0 {
		t.Fatal("expected default rules, got none")
	}
	if last := rules[len(rules)-1]; last.Category != CategoryOther || len(last.Keywords) != 0 {
		t.Errorf("last rule = %+v, want keyword-less catch-all", last)
	}
}

func TestMatch(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		input string
		want  Category
	}{
		{"heart surgery for my father", CategoryMedical},
		{"HEALTH", CategoryMedical},
		{"school fees", CategoryEducation},
		{"student laptop", CategoryEducation},
		{"road accident", CategoryEmergency},
		{"Urgent help", CategoryEmergency},
		{"children's shelter", CategoryChild},
		{"my kid", CategoryChild},
		{"house fire", CategoryFamily},
		{"family", CategoryFamily},
		{"crop failure", CategoryOther},
		{"", CategoryOther},
		// First match wins when several categories apply.
		{"family medical emergency", CategoryMedical},
		{"urgent school fees", CategoryEducation},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := rules.Match(tt.input).Category; got != tt.want {
				t.Errorf("Match(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFallbackImage(t *testing.T) {
	if got := FallbackImage("Need surgery"); got != DefaultRules().Get(CategoryMedical).ImageURL {
		t.Errorf("FallbackImage = %q, want medical image", got)
	}
	if got := FallbackImage("something else"); got != DefaultRules().Get(CategoryOther).ImageURL {
		t.Errorf("FallbackImage = %q, want catch-all image", got)
	}
}
