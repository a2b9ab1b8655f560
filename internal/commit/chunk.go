package commit

// DefaultBatchSize is the largest batch the system-of-record API accepts.
const DefaultBatchSize = 10

// Chunk splits items into consecutive slices of at most size elements.
// The last chunk may be shorter. A non-positive size uses DefaultBatchSize.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
