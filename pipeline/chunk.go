package pipeline

// Chunks splits pending into consecutive slices of at most size elements.
// The returned chunks share pending's backing array. size <= 0 yields a single chunk.
func Chunks(pending []string, size int) [][]string {
	if len(pending) == 0 {
		return nil
	}
	if size <= 0 || size > len(pending) {
		size = len(pending)
	}

	chunks := make([][]string, 0, (len(pending)+size-1)/size)
	for start := 0; start < len(pending); start += size {
		end := min(start+size, len(pending))
		chunks = append(chunks, pending[start:end:end])
	}
	return chunks
}

// ChunkCount returns ceil(total/size) for size > 0.
func ChunkCount(total, size int) int {
	if total <= 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
