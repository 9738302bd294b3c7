package uuid

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid"
)

// Generator UUID generator interface
type Generator interface {
	Generate() (string, error)
}

// DefaultAlphabet lower case alphanumerics, ids stay readable in log lines
const DefaultAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NanoIDGenerator UUID implementation using NanoID
type NanoIDGenerator struct {
	Length   int
	Alphabet string
}

var _ Generator = &NanoIDGenerator{}

// NewNanoIDGenerator create a new `NanoIDGenerator` instance
func NewNanoIDGenerator(length int) (*NanoIDGenerator, error) {
	if length < 1 {
		return nil, fmt.Errorf("id length must be positive, got %d", length)
	}
	return &NanoIDGenerator{Length: length, Alphabet: DefaultAlphabet}, nil
}

// Generate generate UUID
func (ns *NanoIDGenerator) Generate() (string, error) {
	return gonanoid.Generate(ns.Alphabet, ns.Length)
}
