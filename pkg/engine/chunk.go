package engine

// chunk splits a sequence into consecutive slices of at most size
// elements, preserving order. The last chunk may be shorter. A
// non-positive size or a sequence no longer than size yields a single
// chunk holding the whole sequence; the degenerate inputs deliberately
// degrade instead of panicking.
func chunk[T any](seq []T, size int) [][]T {
	if len(seq) == 0 {
		return nil
	}
	if size <= 0 || size >= len(seq) {
		return [][]T{seq}
	}

	chunks := make([][]T, 0, (len(seq)+size-1)/size)
	for start := 0; start < len(seq); start += size {
		end := start + size
		if end > len(seq) {
			end = len(seq)
		}
		chunks = append(chunks, seq[start:end])
	}
	return chunks
}
