package model

// Element represents a UI element in the accessibility tree.
type Element struct {
	ID          int       `yaml:"i"             json:"i"`             // Sequential integer ID
	Ref         string    `yaml:"ref,omitempty" json:"ref,omitempty"` // Stable reference handle
	Role        string    `yaml:"r"             json:"r"`             // Abbreviated role code
	Subrole     string    `yaml:"sr,omitempty"  json:"sr,omitempty"`  // Raw accessibility subrole
	Identifier  string    `yaml:"sid,omitempty" json:"sid,omitempty"` // Structural identifier (AXIdentifier, DOM id)
	Title       string    `yaml:"t,omitempty"   json:"t,omitempty"`   // Visible label / title
	Value       string    `yaml:"v,omitempty"   json:"v,omitempty"`   // Current value
	Description string    `yaml:"d,omitempty"   json:"d,omitempty"`   // Accessibility description
	Bounds      [4]int    `yaml:"b"             json:"b"`             // [x, y, width, height]
	Focused     bool      `yaml:"f,omitempty"   json:"f,omitempty"`   // Has keyboard focus
	Enabled     *bool     `yaml:"e,omitempty"   json:"e,omitempty"`   // nil or true = enabled (omit); false = disabled (include)
	Selected    bool      `yaml:"s,omitempty"   json:"s,omitempty"`   // Is selected
	Children    []Element `yaml:"c,omitempty"   json:"c,omitempty"`   // Child elements
	Actions     []string  `yaml:"a,omitempty"   json:"a,omitempty"`   // Available actions
}

// CloneElements returns a deep copy of the element tree.
func CloneElements(elements []Element) []Element {
	if elements == nil {
		return nil
	}
	out := make([]Element, len(elements))
	for i, el := range elements {
		out[i] = el
		if el.Enabled != nil {
			v := *el.Enabled
			out[i].Enabled = &v
		}
		if el.Actions != nil {
			out[i].Actions = append([]string(nil), el.Actions...)
		}
		out[i].Children = CloneElements(el.Children)
	}
	return out
}

// CountElements returns the number of elements in the tree, including descendants.
func CountElements(elements []Element) int {
	n := 0
	for i := range elements {
		n += 1 + CountElements(elements[i].Children)
	}
	return n
}

// Walk visits every element in pre-order. The callback receives a pointer into
// the tree so it may modify the element in place.
func Walk(elements []Element, fn func(el *Element)) {
	for i := range elements {
		fn(&elements[i])
		Walk(elements[i].Children, fn)
	}
}
