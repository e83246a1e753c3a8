package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	tests := []struct {
		name       string
		offset     *int
		limit      *int
		wantOffset int
		wantLimit  int
	}{
		{"defaults when nil", nil, nil, 0, 20},
		{"explicit values", intPtr(40), intPtr(50), 40, 50},
		{"negative offset ignored", intPtr(-5), intPtr(10), 0, 10},
		{"zero limit ignored", intPtr(0), intPtr(0), 0, 20},
		{"limit capped", nil, intPtr(5000), 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOffset, gotLimit := Window(tt.offset, tt.limit)
			assert.Equal(t, tt.wantOffset, gotOffset)
			assert.Equal(t, tt.wantLimit, gotLimit)
		})
	}
}
