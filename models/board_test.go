package models

import "testing"

func TestCantorValue_Bijection(t *testing.T) {
	seen := make(map[int]bool)
	for x := 0; x < 20; x++ {
		for y := 0; y < 20; y++ {
			z := CantorValue(x, y)
			if seen[z] {
				t.Fatalf("CantorValue(%d, %d) = %d collides with an earlier pair", x, y, z)
			}
			seen[z] = true

			gotX, gotY := InverseCantorValue(z)
			if gotX != x || gotY != y {
				t.Errorf("InverseCantorValue(%d) = (%d, %d), want (%d, %d)", z, gotX, gotY, x, y)
			}
		}
	}
}

func TestBoard_Validate(t *testing.T) {
	valid := Board{
		CantorValue(0, 0): {Level: 1, Color: "red", X: 0, Y: 0},
		CantorValue(3, 4): {Level: 3, Color: "green", X: 3, Y: 4},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid board rejected: %v", err)
	}

	cases := map[string]Board{
		"level too low":   {CantorValue(0, 0): {Level: 0, Color: "red", X: 0, Y: 0}},
		"level too high":  {CantorValue(0, 0): {Level: 4, Color: "red", X: 0, Y: 0}},
		"negative coord":  {CantorValue(0, 0): {Level: 1, Color: "red", X: -1, Y: 0}},
		"mismatched key":  {7: {Level: 1, Color: "red", X: 0, Y: 0}},
	}
	for name, board := range cases {
		if err := board.Validate(); err == nil {
			t.Errorf("%s: board should have been rejected", name)
		}
	}
}

func TestBoard_Clone(t *testing.T) {
	original := Board{
		CantorValue(1, 1): {Level: 2, Color: "blue", X: 1, Y: 1},
	}
	clone := original.Clone()
	clone[CantorValue(1, 1)] = CellValue{Level: 3, Color: "red", X: 1, Y: 1}

	if original[CantorValue(1, 1)].Color != "blue" {
		t.Error("Mutating a clone must not change the original board")
	}
}

func TestPalette_Order(t *testing.T) {
	expected := []string{
		"red", "green", "blue", "yellow", "cyan", "purple",
		"violet", "pink", "orange", "brown", "maroon", "grey",
	}
	if len(Palette) != len(expected) {
		t.Fatalf("Expected %d colors, got %d", len(expected), len(Palette))
	}
	for i, color := range expected {
		if Palette[i] != color {
			t.Errorf("Palette[%d] = %q, want %q", i, Palette[i], color)
		}
	}
}
