// Package chunk converts cleaned markup into ordered, token-bounded chunks
// for the downstream embedding pipeline.
package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used for token budgets; it matches the
// ada/cl100k family of embedding models.
const DefaultEncoding = "cl100k_base"

// TiktokenCounter counts and encodes tokens under a fixed BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding (DefaultEncoding if empty).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the token count of text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Encode returns the token IDs of text.
func (c *TiktokenCounter) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}
