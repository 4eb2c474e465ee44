package observation

// Verdict is the outcome of a run: the catalogue split by observation flag,
// each half in catalogue order, and whether every service was observed.
type Verdict struct {
	Pass         bool
	Certified    []Entry
	NonCertified []Entry
}

// Partition splits a snapshot into certified and non-certified services.
// Pass holds only when the non-certified half is empty.
func Partition(entries []Entry) Verdict {
	v := Verdict{
		Certified:    []Entry{},
		NonCertified: []Entry{},
	}
	for _, e := range entries {
		if e.Observed {
			v.Certified = append(v.Certified, e)
		} else {
			v.NonCertified = append(v.NonCertified, e)
		}
	}
	v.Pass = len(v.NonCertified) == 0
	return v
}

// Verdict partitions the current table.
func (s *State) Verdict() Verdict {
	return Partition(s.Snapshot())
}

// CertifiedNames returns the certified service names.
func (v Verdict) CertifiedNames() []string {
	return names(v.Certified)
}

// NonCertifiedNames returns the non-certified service names.
func (v Verdict) NonCertifiedNames() []string {
	return names(v.NonCertified)
}

// Outcome returns "passed" or "failed".
func (v Verdict) Outcome() string {
	if v.Pass {
		return "passed"
	}
	return "failed"
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Service
	}
	return out
}
