package service

import "errors"

var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Split partitions items into consecutive batches of at most size elements,
// preserving order.
func Split[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if len(items) == 0 {
		return nil, nil
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches, nil
}
