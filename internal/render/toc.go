package render

import (
	"encoding/json"
	"fmt"
)

const emptyTOC = "[]"

// TOCItem is one entry of a page's table of contents. Children nest by
// heading level.
type TOCItem struct {
	Title    string    `json:"title"`
	Anchor   string    `json:"anchor"`
	Children []TOCItem `json:"children"`
}

type heading struct {
	Level  int
	Title  string
	Anchor string
}

// tocFromHeadings nests a flat heading sequence by level. A heading
// becomes a child of the nearest preceding heading with a lower level,
// so skipped levels do not break the structure.
func tocFromHeadings(headings []heading) []TOCItem {
	var root []TOCItem

	type frame struct {
		items *[]TOCItem
		level int
	}
	stack := []frame{{items: &root, level: 0}}

	for _, h := range headings {
		for len(stack) > 1 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].items
		item := TOCItem{
			Title:    h.Title,
			Anchor:   "#" + h.Anchor,
			Children: []TOCItem{},
		}
		*parent = append(*parent, item)
		stack = append(stack, frame{items: &(*parent)[len(*parent)-1].Children, level: h.Level})
	}
	return root
}

func encodeTOC(items []TOCItem) (string, error) {
	if len(items) == 0 {
		return emptyTOC, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode toc: %w", err)
	}
	return string(b), nil
}
