package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"07", "7"},
		{"7", "7"},
		{"000123", "123"},
		{"0", "0"},
		{"00", "0"},
		{" 05 ", "5"},
		{"2B", "2B"},
		{"", "0"},
		{"   ", "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCode(tt.in), "NormalizeCode(%q)", tt.in)
	}
}
