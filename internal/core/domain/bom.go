package domain

import "errors"

var ErrInvalidRequest = errors.New("invalid request")

// BOMLine is one entry of a project's bill of materials: the quantity of a
// component, drawn from a specific location, needed to build one unit.
type BOMLine struct {
	ComponentID  string
	LocationID   string
	UnitQuantity int
}

type Project struct {
	ID   string
	Name string
	BOM  []BOMLine
}

// ExpandBOM scales a bill of materials by the requested build quantity,
// producing one settlement line per (component, location) pair. BOM entries
// sharing a pair are merged into one line so the commit issues a single
// conditional write per stock entry. It fails with ErrInvalidRequest when the
// multiplier is not positive or the BOM is empty.
func ExpandBOM(bom []BOMLine, multiplier int) ([]SettlementLine, error) {
	if multiplier <= 0 || len(bom) == 0 {
		return nil, ErrInvalidRequest
	}
	type pair struct{ componentID, locationID string }
	index := make(map[pair]int, len(bom))
	lines := make([]SettlementLine, 0, len(bom))
	for _, b := range bom {
		key := pair{b.ComponentID, b.LocationID}
		if i, ok := index[key]; ok {
			lines[i].Required += b.UnitQuantity * multiplier
			continue
		}
		index[key] = len(lines)
		lines = append(lines, SettlementLine{
			ComponentID: b.ComponentID,
			LocationID:  b.LocationID,
			Required:    b.UnitQuantity * multiplier,
		})
	}
	return lines, nil
}
