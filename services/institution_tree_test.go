package services

import (
	"testing"

	"github.com/tahirov/eduadmin-api/model"
)

func uintPtr(v uint) *uint { return &v }

// buildTestTree builds a ministry -> region -> 3 sectors -> 5 schools
// each hierarchy:
//
//	1 ministry
//	2 region
//	10,11,12 sectors
//	100..104, 110..114, 120..124 schools
func buildTestTree() *TreeSnapshot {
	institutions := []model.Institution{
		{ID: 1, Name: "Ministry", Type: "ministry", Level: model.LevelMinistry, IsActive: true},
		{ID: 2, Name: "Region", Type: "region", ParentID: uintPtr(1), Level: model.LevelRegion, IsActive: true},
	}
	for s := 0; s < 3; s++ {
		sectorID := uint(10 + s)
		institutions = append(institutions, model.Institution{
			ID: sectorID, Name: "Sector", Type: "sector", ParentID: uintPtr(2), Level: model.LevelSector, IsActive: true,
		})
		for w := 0; w < 5; w++ {
			institutions = append(institutions, model.Institution{
				ID: sectorID*10 + uint(w), Name: "School", Type: "school", ParentID: uintPtr(sectorID), Level: model.LevelSchool, IsActive: true,
			})
		}
	}
	return NewTreeSnapshot(institutions, 1)
}

func TestSubtreeCounts(t *testing.T) {
	tree := buildTestTree()

	tests := []struct {
		name string
		root uint
		want int
	}{
		{"ministry covers everything", 1, 20},
		{"region covers itself plus sectors and schools", 2, 19},
		{"sector covers itself plus its schools", 10, 6},
		{"school is a leaf", 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tree.Subtree(tt.root)
			if len(got) != tt.want {
				t.Errorf("Subtree(%d) returned %d nodes, want %d", tt.root, len(got), tt.want)
			}
			if len(got) > 0 && got[0] != tt.root {
				t.Errorf("Subtree(%d) first element = %d, want the root itself", tt.root, got[0])
			}
		})
	}

	if nodes := tree.Subtree(999); nodes != nil {
		t.Errorf("Subtree(999) = %v, want nil for unknown id", nodes)
	}
}

func TestSubtreeExcludesSiblings(t *testing.T) {
	tree := buildTestTree()

	inSubtree := make(map[uint]bool)
	for _, id := range tree.Subtree(10) {
		inSubtree[id] = true
	}

	if inSubtree[11] || inSubtree[110] {
		t.Error("sector subtree must not contain sibling sectors or their schools")
	}
	if !inSubtree[104] {
		t.Error("sector subtree missing its own school")
	}
}

func TestAncestors(t *testing.T) {
	tree := buildTestTree()

	got := tree.Ancestors(104)
	want := []uint{10, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("Ancestors(104) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Ancestors(104) = %v, want %v", got, want)
		}
	}

	if got := tree.Ancestors(1); len(got) != 0 {
		t.Errorf("Ancestors(root) = %v, want empty", got)
	}
}

func TestAncestorAtLevel(t *testing.T) {
	tree := buildTestTree()

	if id, ok := tree.AncestorAtLevel(104, model.LevelSector); !ok || id != 10 {
		t.Errorf("AncestorAtLevel(104, sector) = %d,%v, want 10,true", id, ok)
	}
	if id, ok := tree.AncestorAtLevel(104, model.LevelSchool); !ok || id != 104 {
		t.Errorf("AncestorAtLevel(104, school) = %d,%v, want self", id, ok)
	}
	if _, ok := tree.AncestorAtLevel(2, model.LevelSector); ok {
		t.Error("AncestorAtLevel must not find levels below the node")
	}
}

func TestIsAncestorOrSelf(t *testing.T) {
	tree := buildTestTree()

	if !tree.IsAncestorOrSelf(2, 104) {
		t.Error("region should be ancestor of its school")
	}
	if !tree.IsAncestorOrSelf(104, 104) {
		t.Error("node should be ancestor-or-self of itself")
	}
	if tree.IsAncestorOrSelf(11, 104) {
		t.Error("sibling sector must not be ancestor of another sector's school")
	}
	if tree.IsAncestorOrSelf(104, 10) {
		t.Error("descendant must not count as ancestor")
	}
}
