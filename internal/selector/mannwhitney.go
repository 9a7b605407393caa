package selector

import (
	"math"
	"sort"
)

// RankSumP computes the one-sided p-value of the Mann-Whitney U test for
// the hypothesis that values in a stochastically dominate values in b
// downward, i.e. that a's distribution is smaller (faster) than b's.
//
// Uses the normal approximation with tie correction, adequate for the
// sample counts the sampler produces (>= 10 per side). Returns 1.0 when
// either side has fewer than 2 samples: no inference from nothing.
func RankSumP(a, b []float64) float64 {
	n1 := len(a)
	n2 := len(b)
	if n1 < 2 || n2 < 2 {
		return 1.0
	}

	ranks, tieTerm := rankAll(a, b)

	// Rank sum of group a.
	var r1 float64
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}

	u1 := r1 - float64(n1*(n1+1))/2
	mean := float64(n1) * float64(n2) / 2

	n := float64(n1 + n2)
	variance := float64(n1) * float64(n2) / 12 * ((n + 1) - tieTerm/(n*(n-1)))
	if variance <= 0 {
		// Every observation tied: no evidence of difference.
		return 1.0
	}

	// Continuity correction toward the mean; one-sided lower tail
	// (a faster means u1 below its mean).
	z := (u1 + 0.5 - mean) / math.Sqrt(variance)
	return normalCDF(z)
}

// rankAll assigns midranks to the concatenation of a and b, returning the
// ranks (a's first) and the tie-correction term Σ(t³−t).
func rankAll(a, b []float64) (ranks []float64, tieTerm float64) {
	type obs struct {
		v     float64
		group int // index into ranks
	}

	all := make([]obs, 0, len(a)+len(b))
	for i, v := range a {
		all = append(all, obs{v, i})
	}
	for i, v := range b {
		all = append(all, obs{v, len(a) + i})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].v < all[j].v })

	ranks = make([]float64, len(all))
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		// Midrank for the tie group [i, j).
		mid := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[all[k].group] = mid
		}
		t := float64(j - i)
		if t > 1 {
			tieTerm += t*t*t - t
		}
		i = j
	}
	return ranks, tieTerm
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}
