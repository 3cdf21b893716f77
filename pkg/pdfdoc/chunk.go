package pdfdoc

// DefaultChunkSize is the rune count used when callers pass a
// non-positive chunk size.
const DefaultChunkSize = 3000

// ChunkText splits text into consecutive rune slices of at most size
// runes. Chunks are not trimmed, so joining them reproduces the input
// exactly.
func ChunkText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
