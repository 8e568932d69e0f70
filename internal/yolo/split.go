package yolo

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ironsheep/coco2yolo/internal/coco"
)

// Split names one of the three output subsets.
type Split string

const (
	Train Split = "train"
	Val   Split = "val"
	Test  Split = "test"
)

// Splits lists the subsets in output order.
var Splits = []Split{Train, Val, Test}

// pcgStream is the fixed PCG stream selector; only the seed varies.
const pcgStream = 0x9e3779b97f4a7c15

// Assignment maps canonical image ids to their subset.
type Assignment map[string]Split

// AssignSplits shuffles ids with a PRNG seeded by seed and cuts the result
// sequentially: the first floor(n*train) ids go to Train, the next
// floor(n*val) to Val, and every remaining id to Test.
//
// The test fraction does not enter the arithmetic. Rounding losses, and any
// shortfall when the fractions sum to less than one, land in Test; fractions
// summing to more than one starve Test first, then Val. Duplicate ids are
// assigned once, at their first position.
func AssignSplits(ids []coco.ID, train, val, test float64, seed int64) Assignment {
	keys := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		k := id.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), pcgStream))
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	n := len(keys)
	nTrain := cut(n, train, n)
	nVal := cut(n, val, n-nTrain)

	a := make(Assignment, n)
	for i, k := range keys {
		switch {
		case i < nTrain:
			a[k] = Train
		case i < nTrain+nVal:
			a[k] = Val
		default:
			a[k] = Test
		}
	}
	return a
}

// cut returns floor(n*fraction) bounded to [0, limit].
func cut(n int, fraction float64, limit int) int {
	if !(fraction > 0) {
		return 0
	}
	c := int(math.Floor(float64(n) * fraction))
	return min(c, limit)
}

// Of returns the subset of id.
func (a Assignment) Of(id coco.ID) (Split, bool) {
	s, ok := a[id.String()]
	return s, ok
}

// Counts returns the number of ids per subset; every subset is present.
func (a Assignment) Counts() map[Split]int {
	counts := map[Split]int{Train: 0, Val: 0, Test: 0}
	for _, s := range a {
		counts[s]++
	}
	return counts
}

// Members returns the sorted ids assigned to s.
func (a Assignment) Members(s Split) []string {
	var out []string
	for k, v := range a {
		if v == s {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
