package geo

import (
	"errors"
	"math"
	"testing"
)

func TestPositionFromString_Valid(t *testing.T) {
	p, err := PositionFromString("37.5665,126.9780")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 37.5665 {
		t.Errorf("expected Lat=37.5665, got %f", p.Lat)
	}
	if p.Lon != 126.9780 {
		t.Errorf("expected Lon=126.9780, got %f", p.Lon)
	}
}

func TestPositionFromString_Whitespace(t *testing.T) {
	p, err := PositionFromString(" 37.5, 127.0 ")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 37.5 || p.Lon != 127.0 {
		t.Errorf("unexpected position: %+v", p)
	}
}

func TestPositionFromString_Invalid(t *testing.T) {
	cases := []string{"", "37.5", "abc,127.0", "37.5,xyz", "NaN,127.0"}

	for _, c := range cases {
		if _, err := PositionFromString(c); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("input %q: expected ErrInvalidCoordinates, got %v", c, err)
		}
	}
}

func TestPosition_Valid(t *testing.T) {
	if !(Position{Lat: 1, Lon: 2}).Valid() {
		t.Error("finite position should be valid")
	}
	if (Position{Lat: math.NaN(), Lon: 2}).Valid() {
		t.Error("NaN latitude should be invalid")
	}
	if (Position{Lat: 1, Lon: math.Inf(1)}).Valid() {
		t.Error("infinite longitude should be invalid")
	}
}

func TestPositionFrom3857(t *testing.T) {
	// Seoul City Hall in web mercator
	p, err := PositionFrom3857(14134521.0, 4518387.0)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(p.Lat-37.56) > 0.1 {
		t.Errorf("expected Lat≈37.56, got %f", p.Lat)
	}
	if math.Abs(p.Lon-126.97) > 0.1 {
		t.Errorf("expected Lon≈126.97, got %f", p.Lon)
	}
}

func TestBoundsFor(t *testing.T) {
	b, ok := BoundsFor([]Position{
		{Lat: 37.5, Lon: 127.0},
		{Lat: 37.7, Lon: 126.8},
		{Lat: 37.6, Lon: 127.1},
	})

	if !ok {
		t.Fatal("expected bounds for non-empty slice")
	}
	if b.SouthWest.Lat != 37.5 || b.SouthWest.Lon != 126.8 {
		t.Errorf("unexpected south-west corner: %+v", b.SouthWest)
	}
	if b.NorthEast.Lat != 37.7 || b.NorthEast.Lon != 127.1 {
		t.Errorf("unexpected north-east corner: %+v", b.NorthEast)
	}
}

func TestBoundsFor_Empty(t *testing.T) {
	if _, ok := BoundsFor(nil); ok {
		t.Error("expected no bounds for empty slice")
	}
}

func TestBoundsFor_SinglePoint(t *testing.T) {
	b, ok := BoundsFor([]Position{{Lat: 37.5, Lon: 127.0}})

	if !ok {
		t.Fatal("expected bounds for single point")
	}
	if b.SouthWest != b.NorthEast {
		t.Errorf("single point bounds should collapse: %+v", b)
	}
}
