package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	cases := map[string]string{
		"Intro to Go":            "intro-to-go",
		"  Go -- Advanced!!  ":   "go-advanced",
		"Ünïcode Course":         "ünïcode-course",
		"!!!":                    "",
		"Rust & WebAssembly 101": "rust-webassembly-101",
	}
	for in, want := range cases {
		assert.Equal(t, want, GenerateSlug(in), in)
	}
}
