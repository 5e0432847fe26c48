// Package citation turns assistant message content with embedded [N]
// markers into display segments that a front-end can render without
// re-parsing anything. Parsing is kept free of any rendering concern.
package citation

import (
	"regexp"
	"strconv"

	"github.com/seenlim/docchat/internal/model"
)

var markerRegex = regexp.MustCompile(`\[(\d+)\]`)

// Segment is one atomic unit of rendered message content. Citation is
// nil for plain text; when set, Text holds the original bracket marker
// verbatim.
type Segment struct {
	Text     string          `json:"text"`
	Citation *model.Citation `json:"citation,omitempty"`
}

func (s Segment) IsCitation() bool {
	return s.Citation != nil
}

// Render partitions content on [N] markers and resolves each marker
// against the citation list by index. Markers without a matching
// citation stay plain text. Concatenating the Text of all returned
// segments reproduces content exactly. Render never fails.
func Render(content string, citations []model.Citation) []Segment {
	if content == "" {
		return []Segment{}
	}
	byIndex := make(map[int]*model.Citation, len(citations))
	for i := range citations {
		// Duplicate indices are not expected; last one wins.
		byIndex[citations[i].Index] = &citations[i]
	}

	segments := make([]Segment, 0, 4)
	last := 0
	for _, loc := range markerRegex.FindAllStringSubmatchIndex(content, -1) {
		start, end := loc[0], loc[1]
		if start > last {
			segments = append(segments, Segment{Text: content[last:start]})
		}
		marker := content[start:end]
		index, err := strconv.Atoi(content[loc[2]:loc[3]])
		if err == nil {
			if cit, ok := byIndex[index]; ok {
				segments = append(segments, Segment{Text: marker, Citation: cit})
				last = end
				continue
			}
		}
		segments = append(segments, Segment{Text: marker})
		last = end
	}
	if last < len(content) {
		segments = append(segments, Segment{Text: content[last:]})
	}
	return segments
}
