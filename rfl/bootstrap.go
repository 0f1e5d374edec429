package rfl

import (
	"math"
	"math/rand"
)

//splitmix64 mixes a 64-bit value into a well-distributed seed.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

//treeSeed derives the seed of one tree's random stream from the master seed and
//the tree ordinal. Each tree owns its stream, so a fixed master seed reproduces
//an identical forest regardless of how tree construction is scheduled.
func treeSeed(masterSeed int64, ordinal int) int64 {
	return int64(splitmix64(uint64(masterSeed) ^ splitmix64(uint64(ordinal))))
}

//bootstrapSample draws the per-tree training sample. With replacement it draws
//n row occurrences from n rows, keeping duplicates as independent occurrences;
//without replacement it draws ceil(ratio*n) distinct rows. The returned
//out-of-bag complement holds the rows never drawn, in ascending order.
func bootstrapSample(rng *rand.Rand, n int, withReplacement bool, ratio float64) (inBag, outOfBag []int) {
	drawn := make([]bool, n)
	if withReplacement {
		inBag = make([]int, n)
		for i := range inBag {
			row := rng.Intn(n)
			inBag[i] = row
			drawn[row] = true
		}
	} else {
		k := int(math.Ceil(ratio * float64(n)))
		if k < 1 {
			k = 1
		}
		if k > n {
			k = n
		}
		perm := rng.Perm(n)
		inBag = perm[:k]
		for _, row := range inBag {
			drawn[row] = true
		}
	}
	for row := 0; row < n; row++ {
		if !drawn[row] {
			outOfBag = append(outOfBag, row)
		}
	}
	return inBag, outOfBag
}
