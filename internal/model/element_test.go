package model

import (
	"encoding/json"
	"testing"
)

func TestElement_JSONKeys(t *testing.T) {
	el := Element{
		ID:     1,
		Role:   "btn",
		Title:  "OK",
		Bounds: [4]int{10, 20, 100, 30},
	}
	data, err := json.Marshal(el)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	// Must have compact keys
	for _, key := range []string{"i", "r", "t", "b"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in JSON output", key)
		}
	}
	// Must NOT have verbose keys
	for _, key := range []string{"id", "role", "title", "bounds"} {
		if _, ok := m[key]; ok {
			t.Errorf("unexpected verbose key %q in JSON output", key)
		}
	}
}

func TestElement_OmitEmpty(t *testing.T) {
	el := Element{
		ID:     1,
		Role:   "btn",
		Bounds: [4]int{0, 0, 100, 30},
	}
	data, err := json.Marshal(el)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	// Empty title should be omitted
	if _, ok := m["t"]; ok {
		t.Error("empty title should be omitted")
	}
	// Empty value should be omitted
	if _, ok := m["v"]; ok {
		t.Error("empty value should be omitted")
	}
	// Empty description should be omitted
	if _, ok := m["d"]; ok {
		t.Error("empty description should be omitted")
	}
	// Focused=false should be omitted
	if _, ok := m["f"]; ok {
		t.Error("focused=false should be omitted")
	}
	// Selected=false should be omitted
	if _, ok := m["s"]; ok {
		t.Error("selected=false should be omitted")
	}
	// Enabled=nil should be omitted
	if _, ok := m["e"]; ok {
		t.Error("enabled=nil should be omitted")
	}
	// No children should be omitted
	if _, ok := m["c"]; ok {
		t.Error("empty children should be omitted")
	}
	// No actions should be omitted
	if _, ok := m["a"]; ok {
		t.Error("empty actions should be omitted")
	}
}

func TestElement_EnabledFalse_Included(t *testing.T) {
	f := false
	el := Element{
		ID:      1,
		Role:    "btn",
		Bounds:  [4]int{0, 0, 100, 30},
		Enabled: &f,
	}
	data, err := json.Marshal(el)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	val, ok := m["e"]
	if !ok {
		t.Fatal("enabled=false should be included in JSON")
	}
	if val != false {
		t.Errorf("expected enabled=false, got %v", val)
	}
}

func TestElement_WithChildren(t *testing.T) {
	el := Element{
		ID:     1,
		Role:   "toolbar",
		Title:  "Nav",
		Bounds: [4]int{0, 0, 1440, 52},
		Children: []Element{
			{ID: 2, Role: "btn", Title: "Back", Bounds: [4]int{10, 10, 32, 32}},
		},
	}
	data, err := json.Marshal(el)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	children, ok := m["c"]
	if !ok {
		t.Fatal("children should be present when non-empty")
	}
	arr, ok := children.([]interface{})
	if !ok || len(arr) != 1 {
		t.Errorf("expected 1 child, got %v", children)
	}
}

func TestCloneElements_DeepCopy(t *testing.T) {
	f := false
	orig := []Element{
		{ID: 1, Role: "group", Enabled: &f, Children: []Element{
			{ID: 2, Role: "btn", Title: "OK", Actions: []string{"press"}},
		}},
	}
	clone := CloneElements(orig)
	clone[0].Children[0].Ref = "e1"
	clone[0].Children[0].Actions[0] = "cancel"
	*clone[0].Enabled = true

	if orig[0].Children[0].Ref != "" {
		t.Error("clone shares children with original")
	}
	if orig[0].Children[0].Actions[0] != "press" {
		t.Error("clone shares actions with original")
	}
	if *orig[0].Enabled {
		t.Error("clone shares enabled pointer with original")
	}
}

func TestCountElements(t *testing.T) {
	elements := []Element{
		{ID: 1, Children: []Element{{ID: 2}, {ID: 3, Children: []Element{{ID: 4}}}}},
		{ID: 5},
	}
	if got := CountElements(elements); got != 5 {
		t.Errorf("CountElements() = %d, want 5", got)
	}
	var snap *Snapshot
	if got := snap.Count(); got != 0 {
		t.Errorf("nil Snapshot.Count() = %d, want 0", got)
	}
}
