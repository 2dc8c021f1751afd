package model

import (
	"fmt"
	"regexp"
	"strings"
)

// slugRe matches characters that are not lowercase alphanumeric or hyphens.
var slugRe = regexp.MustCompile(`[^a-z0-9-]+`)

// slugify converts a label to a URL-safe slug: lowercase, hyphens for spaces/special chars.
func slugify(s string) string {
	s = strings.ToLower(s)
	s = slugRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if len(s) > 40 {
		s = s[:40]
		s = strings.TrimRight(s, "-")
	}
	return s
}

// bestLabel returns the best stable label for an element: title > description.
// Value is excluded because it changes (input field content, slider position).
func bestLabel(el Element) string {
	if el.Title != "" {
		return el.Title
	}
	return el.Description
}

// landmarkRoles are roles that are always kept in the position path.
var landmarkRoles = map[string]bool{
	"toolbar": true,
	"menu":    true,
	"list":    true,
	"tab":     true,
}

// dialogSubroles are subroles that indicate a dialog/overlay landmark.
var dialogSubroles = map[string]bool{
	"AXDialog":       true,
	"AXSheet":        true,
	"AXSystemDialog": true,
}

// isLandmark returns true if the element should extend the position path of its children.
func isLandmark(el Element) bool {
	if landmarkRoles[el.Role] || dialogSubroles[el.Subrole] {
		return true
	}
	// Labeled groups are landmarks
	return el.Role == "group" && bestLabel(el) != ""
}

// refSegment returns the position path segment for an element.
func refSegment(el Element) string {
	if label := bestLabel(el); label != "" {
		if slug := slugify(label); slug != "" {
			return el.Role + ":" + slug
		}
	}
	if dialogSubroles[el.Subrole] {
		return "dialog"
	}
	return el.Role
}

// childLandmarkPath returns the landmark path an element hands down to its children.
// Windows, scroll areas and unlabeled structure are transparent.
func childLandmarkPath(el Element, parent string) string {
	if !isLandmark(el) {
		return parent
	}
	seg := refSegment(el)
	if parent == "" {
		return seg
	}
	return parent + "/" + seg
}

// PositionKeys returns the position key of every element of the tree in pre-order.
// Position keys identify an element by where it sits among landmarks rather than by
// its sequential ID, so unrelated insertions elsewhere in the tree leave them intact.
func PositionKeys(elements []Element) []string {
	flat := FlattenElements(elements)
	keys := make([]string, len(flat))
	for i := range flat {
		keys[i] = flat[i].Position
	}
	return keys
}

// FindElementByRef searches a ref-populated element tree for the element carrying
// the given ref.
func FindElementByRef(elements []Element, ref string) (*Element, error) {
	var found *Element
	Walk(elements, func(el *Element) {
		if found == nil && el.Ref == ref {
			found = el
		}
	})
	if found == nil {
		return nil, fmt.Errorf("no element matches ref %q", ref)
	}
	return found, nil
}
