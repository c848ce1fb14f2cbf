package venue

// AliasTable is a bidirectional mapping between a canonical instrument
// name (as registered in internal/registry) and a venue's own spelling of
// that name, e.g. canonical "PEPEUSDT" <-> Binance "1000PEPEUSDT". Names
// with no alias entry pass through unchanged in both directions.
type AliasTable struct {
	canonicalToVenue map[string]string
	venueToCanonical map[string]string
}

// NewAliasTable builds a table from a canonical-name -> venue-name map.
func NewAliasTable(canonicalToVenue map[string]string) *AliasTable {
	t := &AliasTable{
		canonicalToVenue: make(map[string]string, len(canonicalToVenue)),
		venueToCanonical: make(map[string]string, len(canonicalToVenue)),
	}
	for canonical, venueName := range canonicalToVenue {
		t.canonicalToVenue[canonical] = venueName
		t.venueToCanonical[venueName] = canonical
	}
	return t
}

// ToVenue maps a canonical name to its venue spelling, or returns the
// input unchanged if no alias is registered.
func (t *AliasTable) ToVenue(canonical string) string {
	if t == nil {
		return canonical
	}
	if v, ok := t.canonicalToVenue[canonical]; ok {
		return v
	}
	return canonical
}

// ToCanonical maps a venue-spelled name back to its canonical form, or
// returns the input unchanged if no alias is registered.
func (t *AliasTable) ToCanonical(venueName string) string {
	if t == nil {
		return venueName
	}
	if c, ok := t.venueToCanonical[venueName]; ok {
		return c
	}
	return venueName
}
