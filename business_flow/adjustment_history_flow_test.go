package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeForBucketEdges(t *testing.T) {
	tests := []struct {
		pct      float64
		expected string
	}{
		{-20.0, "decrease"},
		{-0.01, "decrease"},
		{0.0, "0-5%"},
		{4.99, "0-5%"},
		{5.0, "5-10%"},
		{9.99, "5-10%"},
		{10.0, "10-20%"},
		{19.99, "10-20%"},
		{20.0, ">20%"},
		{25.0, ">20%"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, changeFor(tt.pct), "pct %v", tt.pct)
	}
}

