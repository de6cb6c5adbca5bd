package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

func validTemplate() Template {
	return Template{
		ID:             "interview-30",
		Name:           "30-Day Interview Prep",
		DurationDays:   3,
		TotalQuestions: 10,
		Sections: []SectionWeight{
			{ID: "algorithms", Weight: 40},
			{ID: "system-design", Weight: 60},
		},
		DifficultyProfile: shared.DifficultyMedium,
	}
}

func TestResolveTemplate_Valid(t *testing.T) {
	resolved, err := ResolveTemplate(validTemplate())

	assert.NoError(t, err)
	assert.Equal(t, shared.TemplateID("interview-30"), resolved.ID)
	assert.Equal(t, 3, resolved.DurationDays)
	assert.Equal(t, 10, resolved.TotalQuestions)
	assert.Len(t, resolved.Sections, 2)
}

func TestResolveTemplate_SortsSectionsByID(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Sections = []SectionWeight{
		{ID: "zebra", Weight: 30},
		{ID: "alpha", Weight: 50},
		{ID: "mid", Weight: 20},
	}

	resolved, err := ResolveTemplate(tmpl)

	assert.NoError(t, err)
	assert.Equal(t, shared.SectionID("alpha"), resolved.Sections[0].ID)
	assert.Equal(t, shared.SectionID("mid"), resolved.Sections[1].ID)
	assert.Equal(t, shared.SectionID("zebra"), resolved.Sections[2].ID)
}

func TestResolveTemplate_DoesNotMutateInput(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Sections = []SectionWeight{
		{ID: "zebra", Weight: 60},
		{ID: "alpha", Weight: 40},
	}

	_, err := ResolveTemplate(tmpl)

	assert.NoError(t, err)
	assert.Equal(t, shared.SectionID("zebra"), tmpl.Sections[0].ID)
}

func TestResolveTemplate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{"empty id", func(tm *Template) { tm.ID = "" }},
		{"zero duration", func(tm *Template) { tm.DurationDays = 0 }},
		{"negative duration", func(tm *Template) { tm.DurationDays = -5 }},
		{"zero quota", func(tm *Template) { tm.TotalQuestions = 0 }},
		{"no sections", func(tm *Template) { tm.Sections = nil }},
		{"weights under 100", func(tm *Template) {
			tm.Sections = []SectionWeight{{ID: "a", Weight: 40}, {ID: "b", Weight: 50}}
		}},
		{"weights over 100", func(tm *Template) {
			tm.Sections = []SectionWeight{{ID: "a", Weight: 60}, {ID: "b", Weight: 60}}
		}},
		{"negative weight", func(tm *Template) {
			tm.Sections = []SectionWeight{{ID: "a", Weight: -10}, {ID: "b", Weight: 110}}
		}},
		{"duplicate section id", func(tm *Template) {
			tm.Sections = []SectionWeight{{ID: "a", Weight: 50}, {ID: "a", Weight: 50}}
		}},
		{"empty section id", func(tm *Template) {
			tm.Sections = []SectionWeight{{ID: "", Weight: 100}}
		}},
		{"unknown difficulty", func(tm *Template) { tm.DifficultyProfile = "nightmare" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := validTemplate()
			tt.mutate(&tmpl)

			_, err := ResolveTemplate(tmpl)

			assert.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestResolveTemplate_ZeroWeightSectionAllowed(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Sections = []SectionWeight{
		{ID: "main", Weight: 100},
		{ID: "optional", Weight: 0},
	}

	resolved, err := ResolveTemplate(tmpl)

	assert.NoError(t, err)
	assert.Len(t, resolved.Sections, 2)
}

func TestResolveTemplate_EmptyDifficultyProfileAllowed(t *testing.T) {
	tmpl := validTemplate()
	tmpl.DifficultyProfile = ""

	_, err := ResolveTemplate(tmpl)

	assert.NoError(t, err)
}
