package utils

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	MinShortCodeLength     = 6
	MaxShortCodeLength     = 8
	DefaultShortCodeLength = 7

	// без похожих символов (0/O, 1/l/I)
	alphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Generator produces random short codes of a fixed length.
type Generator struct {
	length int
	next   func() string
}

func NewGenerator(length int) (*Generator, error) {
	if length < MinShortCodeLength || length > MaxShortCodeLength {
		return nil, fmt.Errorf("short code length must be between %d and %d, got %d",
			MinShortCodeLength, MaxShortCodeLength, length)
	}

	next, err := nanoid.CustomASCII(alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("failed to create code generator: %w", err)
	}

	return &Generator{length: length, next: next}, nil
}

func (g *Generator) Generate() string {
	return g.next()
}

func (g *Generator) Length() int {
	return g.length
}
