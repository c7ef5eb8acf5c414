package workprogram

// Clean filters the collection down to records with a usable location:
// geometry present and non-empty, and LOC_ERROR equal to "NO ERROR".
// Records missing the LOC_ERROR field are excluded. Order is preserved
// and the input is not mutated; applying Clean to its own output is a
// no-op.
func Clean(c Collection) Collection {
	kept := make([]Record, 0, len(c.Records))
	for _, r := range c.Records {
		if !usable(r) {
			continue
		}
		kept = append(kept, r)
	}
	return Collection{SRID: c.SRID, Records: kept}
}

func usable(r Record) bool {
	if r.NullGeometry() || r.EmptyGeometry() {
		return false
	}
	locErr, ok := r.LocError()
	return ok && locErr == LocErrorNone
}
