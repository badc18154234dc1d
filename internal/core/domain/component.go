package domain

// Component is a catalog entry. Identity is the opaque catalog ID assigned at
// creation time.
type Component struct {
	ID           string
	Name         string
	Category     string
	Manufacturer string
	PartNumber   string
	UnitPrice    float64
	Locations    []LocationStock
}

// LocationStock is the per-location quantity owned by a component. LocationName
// is a snapshot taken when the entry was created and is never re-derived from
// the live location table, so renamed or deleted locations keep their old name
// in historical data.
type LocationStock struct {
	LocationID   string
	LocationName string
	Quantity     int
}

// StockAt returns the stock entry for locationID, if the component has one.
func (c *Component) StockAt(locationID string) (LocationStock, bool) {
	for _, l := range c.Locations {
		if l.LocationID == locationID {
			return l, true
		}
	}
	return LocationStock{}, false
}

// DisplayName falls back to the ID when the component has no name.
func (c *Component) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
