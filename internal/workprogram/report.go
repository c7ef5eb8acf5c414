package workprogram

// QualityReport summarizes data quality signals over a collection. It is
// informational only: nothing in the pipeline branches on it.
type QualityReport struct {
	Total           int
	EmptyGeometries int
	NullGeometries  int
	// MissingLocError counts records with no LOC_ERROR attribute at all.
	// These are dropped silently by Clean, so they get their own line in
	// the report rather than hiding inside the breakdown.
	MissingLocError int
	// LocErrorCounts is the per-value breakdown of the LOC_ERROR field.
	LocErrorCounts map[string]int
}

// ComputeQualityReport counts quality signals over the collection without
// mutating it. An empty collection yields all-zero counts and an empty
// breakdown.
func ComputeQualityReport(c Collection) QualityReport {
	report := QualityReport{
		Total:          len(c.Records),
		LocErrorCounts: make(map[string]int),
	}

	for _, r := range c.Records {
		if r.NullGeometry() {
			report.NullGeometries++
		} else if r.EmptyGeometry() {
			report.EmptyGeometries++
		}

		locErr, ok := r.LocError()
		if !ok {
			report.MissingLocError++
			continue
		}
		report.LocErrorCounts[locErr]++
	}

	return report
}
