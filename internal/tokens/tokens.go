// Package tokens wraps the tokenizer collaborator behind a pure
// text-to-count function.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter is the boundary the analyzer consumes: plain text in, token count
// out. Implementations must be safe for concurrent use.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken encoding, lazily initialised
// and cached for the process lifetime.
type TiktokenCounter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter returns a counter over the cl100k_base encoding, which tracks
// closely enough across model families for routing thresholds.
func NewCounter() *TiktokenCounter {
	return &TiktokenCounter{encoding: tokenizer.Cl100kBase}
}

func (c *TiktokenCounter) load() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
		if c.err != nil {
			c.err = fmt.Errorf("load tokenizer encoding %s: %w", c.encoding, c.err)
		}
	})
	return c.codec, c.err
}

// Count returns the token count of text. A tokenizer failure degrades to 0
// rather than failing the request; routing thresholds simply won't trigger.
func (c *TiktokenCounter) Count(text string) int {
	codec, err := c.load()
	if err != nil {
		return 0
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}
