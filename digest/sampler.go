package digest

import (
	"math"
	"math/rand/v2"
)

// SampleSize is ceil(total*pct/100), clamped to [0,total].
func SampleSize(total int, pct float64) int {
	if total <= 0 || pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return total
	}
	// The epsilon absorbs float noise such as 7*30/100 = 2.1000000000000001.
	n := int(math.Ceil(float64(total)*pct/100 - 1e-9))
	if n > total {
		n = total
	}
	return n
}

// SamplePosts returns a uniformly random subset of size SampleSize(len(posts), pct), drawn without
// replacement. A nil rng uses the global source.
func SamplePosts(posts []Post, pct float64, rng *rand.Rand) []Post {
	n := SampleSize(len(posts), pct)
	if n == 0 {
		return []Post{}
	}
	if n == len(posts) {
		return append([]Post(nil), posts...)
	}

	idx := make([]int, len(posts))
	for i := range idx {
		idx[i] = i
	}
	// Partial Fisher-Yates: only the first n slots need to be settled.
	for i := 0; i < n; i++ {
		j := i + intN(rng, len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	out := make([]Post, 0, n)
	for _, i := range idx[:n] {
		out = append(out, posts[i])
	}
	return out
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
