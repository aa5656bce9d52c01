// Package shard partitions a site list across independent workers.
//
// The partition is static: every worker computes the same split and picks
// its own slice by index, so no coordination is needed between workers.
package shard

import "fmt"

// Split divides items into n contiguous partitions whose sizes differ by at
// most one. The first len(items)%n partitions get the extra element.
// Concatenating the partitions in order yields items.
func Split[T any](items []T, n int) [][]T {
	if n <= 0 {
		return nil
	}
	k, m := len(items)/n, len(items)%n
	parts := make([][]T, n)
	for i := 0; i < n; i++ {
		lo := i*k + min(i, m)
		hi := (i+1)*k + min(i+1, m)
		parts[i] = items[lo:hi:hi]
	}
	return parts
}

// Select returns partition index of Split(items, n).
func Select[T any](items []T, n, index int) ([]T, error) {
	if n <= 0 {
		return nil, fmt.Errorf("shard: shard count must be positive, got %d", n)
	}
	if index < 0 || index >= n {
		return nil, fmt.Errorf("shard: index %d out of range [0, %d)", index, n)
	}
	return Split(items, n)[index], nil
}
