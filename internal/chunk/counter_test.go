package chunk

import "strings"

// wordCounter is a deterministic TokenCounter for tests: one token per
// whitespace-delimited word. Production uses the tiktoken counter, which is
// interchangeable behind the interface.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func (wordCounter) Encode(text string) []int {
	words := strings.Fields(text)
	ids := make([]int, len(words))
	for i := range words {
		ids[i] = i
	}
	return ids
}
