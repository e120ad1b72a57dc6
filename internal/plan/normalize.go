package plan

// minMaxNormalize scales raw scores to [0, 1]. A single-candidate or
// all-equal set normalizes to 1 for every member (spec.md 4.7).
func minMaxNormalize(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	min, max := minMax(scores)
	if max == min {
		for id := range scores {
			out[id] = 1
		}
		return out
	}

	span := max - min
	for id, s := range scores {
		out[id] = (s - min) / span
	}
	return out
}

func minMax(scores map[string]float64) (min, max float64) {
	first := true
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}
