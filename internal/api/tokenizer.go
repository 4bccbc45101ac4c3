package api

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

// getCodec returns the cl100k_base tokenizer, a reasonable approximation
// for the models the backend runs.
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// EstimateTokens returns an approximate token count for the given text.
func EstimateTokens(text string) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, err
	}

	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}

// EstimateTokensSimple returns the token count, defaulting to 0 on error.
func EstimateTokensSimple(text string) int {
	count, err := EstimateTokens(text)
	if err != nil {
		return 0
	}
	return count
}
