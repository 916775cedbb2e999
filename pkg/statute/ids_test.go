package statute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"dashed number", "1-1-10", "1-1-10"},
		{"section symbol stripped", "§ 12-3", "12-3"},
		{"dotted number keeps dots", "1-206.01", "1-206.01"},
		{"spaces become dashes", "Title 42 Part A", "title-42-part-a"},
		{"underscores become dashes", "part_two", "part-two"},
		{"dash runs collapse", "3--4---5", "3-4-5"},
		{"edges trimmed", "-12A.", "12a"},
		{"empty falls back", "", "unknown"},
		{"only punctuation falls back", "§§", "unknown"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, Slugify(testCase.input))
		})
	}
}

func TestSectionIDIsPureFunctionOfNumber(t *testing.T) {
	numbers := []string{"1-1-10", "12.345a", "Art. 7", "§ 9", "1-206.01", "1-20601"}

	seen := make(map[string]string)
	for _, number := range numbers {
		first := SectionID(number)
		second := NewSection(number, "heading", "text").ID
		assert.Equal(t, first, second, "id for %q must not depend on other fields", number)

		if previous, exists := seen[first]; exists {
			t.Errorf("numbers %q and %q collide on id %q", previous, number, first)
		}
		seen[first] = number
	}
}

func TestLevelIDs(t *testing.T) {
	assert.Equal(t, "section-1-1-10", SectionID("1-1-10"))
	assert.Equal(t, "chapter-2a", ChapterID("2A"))
	assert.Equal(t, "title-unknown", TitleID(""))
}
