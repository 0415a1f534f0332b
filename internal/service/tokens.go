package service

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	CountTokens(text string) int
}

// EstimateTokenCounter approximates tokens as one per four characters.
type EstimateTokenCounter struct{}

func (EstimateTokenCounter) CountTokens(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens returns ceil(runes/4).
func EstimateTokens(text string) int {
	r := []rune(text)
	return int(math.Ceil(float64(len(r)) / 4.0))
}

// TiktokenCounter counts tokens with a BPE encoding. The encoding is loaded
// lazily; if it cannot be loaded the counter falls back to the estimate.
type TiktokenCounter struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewTiktokenCounter returns a counter for the named encoding, e.g. cl100k_base.
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding}
}

func (c *TiktokenCounter) CountTokens(text string) int {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(c.encoding)
	})
	if c.err != nil || c.enc == nil {
		return EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Err reports why the encoding failed to load, if it did.
func (c *TiktokenCounter) Err() error {
	return c.err
}

// NewTokenCounter selects a counter by name ("tiktoken" or "estimate").
func NewTokenCounter(name string) TokenCounter {
	if name == "tiktoken" {
		return NewTiktokenCounter("")
	}
	return EstimateTokenCounter{}
}
