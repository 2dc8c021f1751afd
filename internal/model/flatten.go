package model

import "fmt"

// FlatElement is an element with a path breadcrumb instead of children.
type FlatElement struct {
	ID          int      `yaml:"i"             json:"i"`
	Role        string   `yaml:"r"             json:"r"`
	Subrole     string   `yaml:"sr,omitempty"  json:"sr,omitempty"`
	Identifier  string   `yaml:"sid,omitempty" json:"sid,omitempty"`
	Title       string   `yaml:"t,omitempty"   json:"t,omitempty"`
	Value       string   `yaml:"v,omitempty"   json:"v,omitempty"`
	Description string   `yaml:"d,omitempty"   json:"d,omitempty"`
	Bounds      [4]int   `yaml:"b"             json:"b"`
	Focused     bool     `yaml:"f,omitempty"   json:"f,omitempty"`
	Enabled     *bool    `yaml:"e,omitempty"   json:"e,omitempty"`
	Selected    bool     `yaml:"s,omitempty"   json:"s,omitempty"`
	Actions     []string `yaml:"a,omitempty"   json:"a,omitempty"`
	Ref         string   `yaml:"ref,omitempty" json:"ref,omitempty"`
	Path        string   `yaml:"p,omitempty"   json:"p,omitempty"`
	Position    string   `yaml:"-"             json:"-"`
}

// FlattenElements converts a tree of elements into a flat list in pre-order.
// Each element gets a path string showing its location in the tree
// using abbreviated role names joined with " > ", and a position key built
// from its landmark path (see PositionKey).
func FlattenElements(elements []Element) []FlatElement {
	var result []FlatElement
	flattenRecursive(elements, "", "", &result)
	deduplicatePositions(result)
	return result
}

func flattenRecursive(elements []Element, parentPath, landmarkPath string, result *[]FlatElement) {
	for _, el := range elements {
		currentPath := el.Role
		if parentPath != "" {
			currentPath = parentPath + " > " + el.Role
		}

		pos := refSegment(el)
		if landmarkPath != "" {
			pos = landmarkPath + "/" + pos
		}

		*result = append(*result, FlatElement{
			ID:          el.ID,
			Role:        el.Role,
			Subrole:     el.Subrole,
			Identifier:  el.Identifier,
			Title:       el.Title,
			Value:       el.Value,
			Description: el.Description,
			Bounds:      el.Bounds,
			Focused:     el.Focused,
			Enabled:     el.Enabled,
			Selected:    el.Selected,
			Actions:     el.Actions,
			Ref:         el.Ref,
			Path:        currentPath,
			Position:    pos,
		})

		flattenRecursive(el.Children, currentPath, childLandmarkPath(el, landmarkPath), result)
	}
}

// deduplicatePositions appends .1, .2 suffixes to position keys shared by
// more than one element, in pre-order.
func deduplicatePositions(flat []FlatElement) {
	counts := make(map[string]int, len(flat))
	for i := range flat {
		counts[flat[i].Position]++
	}
	seen := make(map[string]int, len(counts))
	for i := range flat {
		pos := flat[i].Position
		if counts[pos] <= 1 {
			continue
		}
		seen[pos]++
		flat[i].Position = fmt.Sprintf("%s.%d", pos, seen[pos])
	}
}
