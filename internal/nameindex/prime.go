package nameindex

import "math/big"

// isPrime reports whether n is prime. ProbablyPrime(0) runs Baillie-PSW,
// which has no known pseudoprimes and is exact below 2^64.
func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	return big.NewInt(int64(n)).ProbablyPrime(0)
}

// nextPrime returns the smallest prime ≥ n.
func nextPrime(n int) int {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n++
	}
	for !isPrime(n) {
		n += 2
	}
	return n
}
