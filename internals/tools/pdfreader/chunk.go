package pdfreader

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Chunk splits text into a deterministic sliding window of spans. Each span
// is at most size runes and shares overlap runes with its predecessor. The
// split is pure: same input, same spans.
func Chunk(text string, size int, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 10
		}
	}

	runes := []rune(text)
	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
