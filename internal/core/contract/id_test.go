package contract

import "testing"

func TestSuffixFor(t *testing.T) {
	tests := []struct {
		ordinal int
		want    string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
	}

	for _, tt := range tests {
		if got := SuffixFor(tt.ordinal); got != tt.want {
			t.Errorf("SuffixFor(%d) = %q, want %q", tt.ordinal, got, tt.want)
		}
	}
}

func TestChildID(t *testing.T) {
	tests := []struct {
		name     string
		parent   string
		existing []string
		want     string
	}{
		{"first child", "CON-1a2b3c4d", nil, "CON-1a2b3c4dA"},
		{"second child", "CON-1a2b3c4d", []string{"CON-1a2b3c4dA"}, "CON-1a2b3c4dB"},
		{"gap is reused", "CON-1a2b3c4d", []string{"CON-1a2b3c4dB"}, "CON-1a2b3c4dA"},
		{"grandchildren do not block", "CON-1a2b3c4d", []string{"CON-1a2b3c4dA", "CON-1a2b3c4dAA"}, "CON-1a2b3c4dB"},
		{"unrelated ids ignored", "CON-1a2b3c4d", []string{"CON-ffffffffA"}, "CON-1a2b3c4dA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChildID(tt.parent, tt.existing); got != tt.want {
				t.Errorf("ChildID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChildIDNeverCollides(t *testing.T) {
	parent := "CON-deadbeef"
	existing := []string{}
	seen := make(map[string]bool)
	for i := 0; i < 60; i++ {
		id := ChildID(parent, existing)
		if seen[id] {
			t.Fatalf("duplicate child id %q at iteration %d", id, i)
		}
		seen[id] = true
		existing = append(existing, id)
	}
}

func TestIsChildOf(t *testing.T) {
	tests := []struct {
		id     string
		parent string
		want   bool
	}{
		{"CON-1a2b3c4dA", "CON-1a2b3c4d", true},
		{"CON-1a2b3c4dAB", "CON-1a2b3c4d", true},
		{"CON-1a2b3c4dAB", "CON-1a2b3c4dA", true},
		{"CON-1a2b3c4d", "CON-1a2b3c4d", false},
		{"CON-ffffffffA", "CON-1a2b3c4d", false},
	}

	for _, tt := range tests {
		if got := IsChildOf(tt.id, tt.parent); got != tt.want {
			t.Errorf("IsChildOf(%q, %q) = %v, want %v", tt.id, tt.parent, got, tt.want)
		}
	}
}
