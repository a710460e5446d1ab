package datasets

// Divisors returns every positive divisor of n, in increasing order. Both 1 and n are included.
// These are the mini-batch sizes that split a dataset of size n evenly.
func Divisors(n int) []int {
	if n < 1 {
		return nil
	}

	var low, high []int
	for d := 1; d*d <= n; d++ {
		if n%d != 0 {
			continue
		}

		low = append(low, d)
		if d != n/d {
			high = append(high, n/d)
		}
	}

	for i := len(high) - 1; i >= 0; i-- {
		low = append(low, high[i])
	}
	return low
}
