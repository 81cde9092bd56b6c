package domain

// Scenario is one synthetic input record: a mapping from feature name
// to a numeric or categorical value. Scenarios need not cover every
// feature referenced by a rule; a missing feature simply fails the
// condition that references it.
type Scenario map[string]any

// Clone returns a shallow-keyed copy of the scenario. Values are
// scalars, so a key-level copy is a full copy.
func (s Scenario) Clone() Scenario {
	out := make(Scenario, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Number reports v as a float64 when it carries a numeric value.
// JSON decoding produces float64, YAML produces int or float64, and
// generated scenarios may carry any Go integer width.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// ScenarioDistance is the normalized distance between two scenarios:
// the mean of the relative difference |a-b| / max(|a|,|b|,eps) over
// shared numeric features, with each categorical mismatch counting as
// 1.0. Categorical features that agree contribute nothing to the mean.
// Returns 0 when nothing differs and no numeric features are shared.
func ScenarioDistance(a, b Scenario) float64 {
	const eps = 1e-10
	var sum float64
	var count int
	for key, va := range a {
		vb, ok := b[key]
		if !ok {
			continue
		}
		na, aNum := Number(va)
		nb, bNum := Number(vb)
		switch {
		case aNum && bNum:
			denom := max(abs(na), abs(nb), eps)
			sum += abs(na-nb) / denom
			count++
		case va != vb:
			sum += 1.0
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ValuesEqual compares two scenario or condition values, treating all
// numeric widths as interchangeable.
func ValuesEqual(a, b any) bool {
	na, aNum := Number(a)
	nb, bNum := Number(b)
	if aNum && bNum {
		return na == nb
	}
	if aNum != bNum {
		return false
	}
	return a == b
}
