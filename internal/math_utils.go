package internal

type integer interface {
	~int | ~int32 | ~int64 | ~uint16 | ~uint32 | ~uint64
}

// NextMultiple returns the smallest multiple of k that is greater than or
// equal to j. j must not be negative, and k must be positive.
func NextMultiple[T integer](j, k T) T {
	return (j + k - 1) / k * k
}
