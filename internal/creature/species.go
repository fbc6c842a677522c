package creature

import "hash/fnv"

// BaseStats holds the level-1 stats a species starts with.
type BaseStats struct {
	MaxHP   int
	Attack  int
	Defense int
	Speed   int
}

// Species describes a mintable creature kind.
type Species struct {
	ID   uint64
	Name string
	Base BaseStats
}

// Curated species. Unknown species ids get deterministic derived stats so
// generic minting works for any id.
var speciesTable = map[uint64]Species{
	1:  {ID: 1, Name: "Sproutile", Base: BaseStats{MaxHP: 45, Attack: 49, Defense: 49, Speed: 45}},
	4:  {ID: 4, Name: "Embercub", Base: BaseStats{MaxHP: 39, Attack: 52, Defense: 43, Speed: 65}},
	7:  {ID: 7, Name: "Shellfin", Base: BaseStats{MaxHP: 44, Attack: 48, Defense: 65, Speed: 43}},
	25: {ID: 25, Name: "Voltail", Base: BaseStats{MaxHP: 35, Attack: 55, Defense: 40, Speed: 90}},
}

// SpeciesFor returns the species definition for an id. Ids outside the
// curated table derive stats from a hash of the id, bounded to the same
// ranges as the curated entries.
func SpeciesFor(id uint64) Species {
	if sp, ok := speciesTable[id]; ok {
		return sp
	}
	return Species{
		ID:   id,
		Name: "Unknown",
		Base: derivedBase(id),
	}
}

func derivedBase(id uint64) BaseStats {
	return BaseStats{
		MaxHP:   35 + int(statHash(id, 0)%36),
		Attack:  40 + int(statHash(id, 1)%31),
		Defense: 40 + int(statHash(id, 2)%31),
		Speed:   40 + int(statHash(id, 3)%51),
	}
}

func statHash(id uint64, slot byte) uint64 {
	h := fnv.New64a()
	var buf [9]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(id >> (8 * i))
	}
	buf[8] = slot
	h.Write(buf[:])
	return h.Sum64()
}
