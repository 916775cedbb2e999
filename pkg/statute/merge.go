package statute

import "unicode/utf8"

// MergeSection folds an incoming pass over the same section into the stored
// record. Text is replaced only when the incoming text is non-empty and
// strictly longer than the stored text; the incoming source URL travels with
// replaced text. Empty heading, history, and source URL fields are filled in
// from the incoming record. Nothing is ever cleared. Reports whether stored
// changed.
func MergeSection(stored *Section, incoming Section) bool {
	changed := false

	if incoming.Text != "" && utf8.RuneCountInString(incoming.Text) > utf8.RuneCountInString(stored.Text) {
		stored.Text = incoming.Text
		if incoming.SourceURL != "" {
			stored.SourceURL = incoming.SourceURL
		}
		changed = true
	}
	if stored.Heading == "" && incoming.Heading != "" {
		stored.Heading = incoming.Heading
		changed = true
	}
	if stored.History == "" && incoming.History != "" {
		stored.History = incoming.History
		changed = true
	}
	if stored.SourceURL == "" && incoming.SourceURL != "" {
		stored.SourceURL = incoming.SourceURL
		changed = true
	}

	return changed
}

func sectionKey(section Section) string {
	if section.ID != "" {
		return section.ID
	}
	return SectionID(section.Number)
}

// MergeSections merges incoming sections into stored by identifier. Stored
// order is kept and unseen sections are appended in incoming order. The
// stored slice is not modified.
func MergeSections(stored []Section, incoming []Section) []Section {
	merged := make([]Section, len(stored), len(stored)+len(incoming))
	copy(merged, stored)

	positions := make(map[string]int, len(merged))
	for index, section := range merged {
		positions[sectionKey(section)] = index
	}

	for _, section := range incoming {
		key := sectionKey(section)
		if index, exists := positions[key]; exists {
			MergeSection(&merged[index], section)
			continue
		}
		if section.ID == "" {
			section.ID = key
		}
		positions[key] = len(merged)
		merged = append(merged, section)
	}

	return merged
}

// MergeChapters concatenates incoming chapters onto stored, merging the
// sections of any chapter whose identifier is already present.
func MergeChapters(stored []Chapter, incoming []Chapter) []Chapter {
	merged := make([]Chapter, len(stored), len(stored)+len(incoming))
	copy(merged, stored)

	positions := make(map[string]int, len(merged))
	for index, chapter := range merged {
		positions[chapter.ID] = index
	}

	for _, chapter := range incoming {
		if index, exists := positions[chapter.ID]; exists {
			merged[index].Sections = MergeSections(merged[index].Sections, chapter.Sections)
			if merged[index].Heading == "" {
				merged[index].Heading = chapter.Heading
			}
			continue
		}
		positions[chapter.ID] = len(merged)
		merged = append(merged, chapter)
	}

	return merged
}

// MergeTitles collapses titles sharing an identifier into the first one seen,
// concatenating their chapters.
func MergeTitles(titles []Title) []Title {
	merged := make([]Title, 0, len(titles))
	positions := make(map[string]int, len(titles))

	for _, title := range titles {
		if index, exists := positions[title.ID]; exists {
			merged[index].Chapters = MergeChapters(merged[index].Chapters, title.Chapters)
			if merged[index].Heading == "" {
				merged[index].Heading = title.Heading
			}
			continue
		}
		positions[title.ID] = len(merged)
		merged = append(merged, title)
	}

	return merged
}
