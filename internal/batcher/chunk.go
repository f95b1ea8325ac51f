package batcher

import "fmt"

// Chunk is an inclusive range of plan positions.
type Chunk struct {
	From int
	To   int
}

// SplitChunks splits n items into consecutive chunks of at most size items.
func SplitChunks(n, size int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}
	if n < 0 {
		return nil, fmt.Errorf("item count must be >= 0")
	}

	chunks := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size - 1
		if end >= n {
			end = n - 1
		}
		chunks = append(chunks, Chunk{From: start, To: end})
	}
	return chunks, nil
}
