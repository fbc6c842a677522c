package creature

import "testing"

func TestCuratedSpecies(t *testing.T) {
	sp := SpeciesFor(1)
	if sp.Name != "Sproutile" {
		t.Fatalf("expected curated species 1, got %q", sp.Name)
	}
	if sp.Base.MaxHP != 45 || sp.Base.Attack != 49 {
		t.Fatalf("unexpected base stats for species 1: %+v", sp.Base)
	}
}

func TestDerivedSpeciesDeterministicAndBounded(t *testing.T) {
	a := SpeciesFor(9999)
	b := SpeciesFor(9999)
	if a.Base != b.Base {
		t.Fatalf("derived stats must be deterministic: %+v vs %+v", a.Base, b.Base)
	}

	for id := uint64(100); id < 200; id++ {
		base := SpeciesFor(id).Base
		if base.MaxHP < 35 || base.MaxHP > 70 {
			t.Fatalf("species %d MaxHP out of range: %d", id, base.MaxHP)
		}
		if base.Attack < 40 || base.Attack > 70 {
			t.Fatalf("species %d Attack out of range: %d", id, base.Attack)
		}
		if base.Defense < 40 || base.Defense > 70 {
			t.Fatalf("species %d Defense out of range: %d", id, base.Defense)
		}
		if base.Speed < 40 || base.Speed > 90 {
			t.Fatalf("species %d Speed out of range: %d", id, base.Speed)
		}
	}
}
