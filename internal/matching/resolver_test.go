package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trim and lower", "  Аптека Сино  ", "аптека сино"},
		{"fold yo", "Алёна", "алена"},
		{"collapse whitespace", "ООО   Нурафшон\tФарм", "ооо нурафшон фарм"},
		{"latin to cyrillic", "Nurafshon", "нурафшон"},
		{"digraph before single", "shifo", "шифо"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestBestMatchExactBeatsFuzzy(t *testing.T) {
	names := []string{"Аптека Шифо Плюс", "Шифо", "Шифо Фарм"}

	m, ok := BestMatch("шифо", names, DefaultThreshold)

	require.True(t, ok)
	// "Шифо" is an exact normalized match but "Аптека Шифо Плюс" contains the
	// query and is encountered first, so the containment rule fires there.
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, 100, m.Score)
}

func TestBestMatchSubstringBypassesScoring(t *testing.T) {
	names := []string{"ООО Нурафшон Фарм"}

	m, ok := BestMatch("Нурафшон", names, 60)

	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, 100, m.Score)
}

func TestBestMatchTransliteratedQuery(t *testing.T) {
	names := []string{"ООО Нурафшон Фарм", "Аптека Сино"}

	m, ok := BestMatch("Nurafshon", names, 60)

	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
}

func TestBestMatchEmptyQuery(t *testing.T) {
	names := []string{"Аптека Сино", "Шифо Фарм"}

	_, ok := BestMatch("", names, 0)
	assert.False(t, ok)

	_, ok = BestMatch("   ", names, 0)
	assert.False(t, ok)
}

func TestBestMatchSkipsEmptyNames(t *testing.T) {
	names := []string{"", "  ", "Аптека Сино"}

	m, ok := BestMatch("аптека сино", names, 60)

	require.True(t, ok)
	assert.Equal(t, 2, m.Index)
}

func TestBestMatchBelowThreshold(t *testing.T) {
	names := []string{"Аптека Сино"}

	_, ok := BestMatch("завод бетон", names, 60)
	assert.False(t, ok)
}

func TestBestMatchTieBreakIsFirstEncountered(t *testing.T) {
	names := []string{"Шифа Фарма", "Шифа Фарма"}

	m, ok := BestMatch("Шифа Фарм", names, 60)

	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
}

func TestScoreMonotonicity(t *testing.T) {
	// A strictly closer string must never score lower than a more distant one.
	query := Normalize("парацетамол")
	closer := Normalize("парацетамоль")
	farther := Normalize("парацетомель")

	assert.GreaterOrEqual(t, Score(query, closer), Score(query, farther))
	assert.Equal(t, 100, Score(query, query))
}

func TestSearchSimilarBoundsAndOrder(t *testing.T) {
	names := []string{"Парацетамол", "Парацетамол форте", "Ибупрофен", "Парацетамол детский", "Аспирин"}

	matches := SearchSimilar("парацетамол", names, 50, 2)

	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Score, 50)
	}
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestSearchSimilarEmptyQuery(t *testing.T) {
	assert.Nil(t, SearchSimilar("", []string{"Аспирин"}, 50, 5))
	assert.Nil(t, SearchSimilar("аспирин", []string{"Аспирин"}, 50, 0))
}
