package platform

import "testing"

func TestParseBBox_Valid(t *testing.T) {
	tests := []string{"10,20,300,400", "10, 20, 300, 400"}
	for _, s := range tests {
		b, err := ParseBBox(s)
		if err != nil {
			t.Fatalf("ParseBBox(%q): %v", s, err)
		}
		if b.Array() != [4]int{10, 20, 300, 400} {
			t.Errorf("ParseBBox(%q) = %+v, want {10 20 300 400}", s, b)
		}
	}
}

func TestParseBBox_Invalid(t *testing.T) {
	tests := []string{
		"",
		"10,20,300",
		"10,20,300,400,500",
		"a,b,c,d",
		"10,20,abc,400",
	}
	for _, s := range tests {
		if _, err := ParseBBox(s); err == nil {
			t.Errorf("ParseBBox(%q) should fail", s)
		}
	}
}
