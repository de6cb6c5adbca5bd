package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

func mustResolve(t *testing.T, tmpl Template) NormalizedTemplate {
	t.Helper()
	resolved, err := ResolveTemplate(tmpl)
	require.NoError(t, err)
	return resolved
}

func TestGenerateSchedule_LargestRemainderAcrossDays(t *testing.T) {
	// 10 questions over 3 days: the first 10%3=1 day gets the extra.
	tmpl := mustResolve(t, Template{
		ID:             "prep",
		DurationDays:   3,
		TotalQuestions: 10,
		Sections: []SectionWeight{
			{ID: "algorithms", Weight: 40},
			{ID: "system-design", Weight: 60},
		},
	})

	schedule := GenerateSchedule(tmpl)

	require.Len(t, schedule.Days, 3)
	assert.Equal(t, 4, schedule.Days[0].TargetQuestions)
	assert.Equal(t, 3, schedule.Days[1].TargetQuestions)
	assert.Equal(t, 3, schedule.Days[2].TargetQuestions)
	assert.Equal(t, 10, schedule.TotalQuestions())
}

func TestGenerateSchedule_SectionSplitDayOne(t *testing.T) {
	// Day 1 has 4 questions, weights 40/60: algorithms gets floor(1.6)=1
	// with remainder 60, system-design floor(2.4)=2 with remainder 40.
	// The leftover unit goes to the larger remainder: algorithms.
	tmpl := mustResolve(t, Template{
		ID:             "prep",
		DurationDays:   3,
		TotalQuestions: 10,
		Sections: []SectionWeight{
			{ID: "algorithms", Weight: 40},
			{ID: "system-design", Weight: 60},
		},
	})

	schedule := GenerateSchedule(tmpl)
	day1 := schedule.Days[0]

	require.Len(t, day1.PerSectionTargets, 2)
	bySection := map[shared.SectionID]int{}
	sum := 0
	for _, st := range day1.PerSectionTargets {
		bySection[st.SectionID] = st.Count
		sum += st.Count
	}
	assert.Equal(t, 2, bySection["algorithms"])
	assert.Equal(t, 2, bySection["system-design"])
	assert.Equal(t, day1.TargetQuestions, sum)
}

func TestGenerateSchedule_SectionSumsMatchDayTargets(t *testing.T) {
	tmpl := mustResolve(t, Template{
		ID:             "wide",
		DurationDays:   7,
		TotalQuestions: 53,
		Sections: []SectionWeight{
			{ID: "a", Weight: 17},
			{ID: "b", Weight: 33},
			{ID: "c", Weight: 29},
			{ID: "d", Weight: 21},
		},
	})

	schedule := GenerateSchedule(tmpl)

	assert.Equal(t, 53, schedule.TotalQuestions())
	for _, day := range schedule.Days {
		sum := 0
		for _, st := range day.PerSectionTargets {
			sum += st.Count
		}
		assert.Equal(t, day.TargetQuestions, sum, "day %d", day.Day)
	}
}

func TestGenerateSchedule_Deterministic(t *testing.T) {
	tmpl := mustResolve(t, Template{
		ID:             "repeat",
		DurationDays:   14,
		TotalQuestions: 100,
		Sections: []SectionWeight{
			{ID: "go", Weight: 25},
			{ID: "sql", Weight: 25},
			{ID: "js", Weight: 25},
			{ID: "http", Weight: 25},
		},
	})

	first := GenerateSchedule(tmpl)
	second := GenerateSchedule(tmpl)

	assert.Equal(t, first, second)
}

func TestGenerateSchedule_RemainderTieBrokenByAscendingID(t *testing.T) {
	// 1 question, two sections at 50/50: both remainders are 50, so the
	// unit goes to the lexicographically smaller id.
	tmpl := mustResolve(t, Template{
		ID:             "tie",
		DurationDays:   1,
		TotalQuestions: 1,
		Sections: []SectionWeight{
			{ID: "zebra", Weight: 50},
			{ID: "alpha", Weight: 50},
		},
	})

	schedule := GenerateSchedule(tmpl)

	bySection := map[shared.SectionID]int{}
	for _, st := range schedule.Days[0].PerSectionTargets {
		bySection[st.SectionID] = st.Count
	}
	assert.Equal(t, 1, bySection["alpha"])
	assert.Equal(t, 0, bySection["zebra"])
}

func TestGenerateSchedule_QuotaSmallerThanDuration(t *testing.T) {
	// 2 questions over 5 days: days 1-2 get one each, days 3-5 get zero
	// and are complete from the start.
	tmpl := mustResolve(t, Template{
		ID:             "sparse",
		DurationDays:   5,
		TotalQuestions: 2,
		Sections:       []SectionWeight{{ID: "only", Weight: 100}},
	})

	schedule := GenerateSchedule(tmpl)

	assert.Equal(t, 1, schedule.Days[0].TargetQuestions)
	assert.Equal(t, 1, schedule.Days[1].TargetQuestions)
	for _, day := range schedule.Days[2:] {
		assert.Equal(t, 0, day.TargetQuestions)
		assert.True(t, day.Completed())
	}
}

func TestGenerateSchedule_ZeroWeightSectionGetsNothing(t *testing.T) {
	tmpl := mustResolve(t, Template{
		ID:             "skewed",
		DurationDays:   2,
		TotalQuestions: 8,
		Sections: []SectionWeight{
			{ID: "everything", Weight: 100},
			{ID: "nothing", Weight: 0},
		},
	})

	schedule := GenerateSchedule(tmpl)

	for _, day := range schedule.Days {
		for _, st := range day.PerSectionTargets {
			if st.SectionID == "nothing" {
				assert.Equal(t, 0, st.Count)
			}
		}
	}
}

func TestDailyGoal_Completed(t *testing.T) {
	assert.True(t, DailyGoal{TargetQuestions: 0}.Completed())
	assert.False(t, DailyGoal{TargetQuestions: 3, CompletedQuestions: 2}.Completed())
	assert.True(t, DailyGoal{TargetQuestions: 3, CompletedQuestions: 3}.Completed())
	assert.True(t, DailyGoal{TargetQuestions: 3, CompletedQuestions: 5}.Completed())
}
