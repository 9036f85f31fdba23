// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

// Package token estimates token counts for display statistics.
//
// The estimate is a heuristic: real tokenizers split on sub-word units, so a
// whitespace word averages roughly 0.75 tokens' worth of text. The figures
// shown to the user are approximate and match no particular model's tokenizer.
package token

import (
	"math"
	"strings"
)

// wordsPerToken is the assumed ratio of whitespace-separated words to
// sub-word tokens.
const wordsPerToken = 0.75

// Estimate returns the approximate token count of text: the number of
// whitespace-separated words divided by 0.75, rounded to the nearest integer.
// Empty or all-whitespace input estimates to zero.
func Estimate(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Round(float64(words) / wordsPerToken))
}
