package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"1,234", 1234, true},
		{"2.5k", 2500, true},
		{"10m", 10_000_000, true},
		{"500+", 500, true},
		{"", 0, false},
		{"abc", 0, false},
		{"   ", 0, false},
		{"1,234,567", 1_234_567, true},
		{"10,001+ employees", 10_001, true},
		{"2 members", 2, true},
		{"1.2K+", 1200, true},
		{"3M followers", 3_000_000, true},
		{"1.5", 2, true},
		{"12 345", 12_345, true},
		{"12 345", 12_345, true},
		{"１２３", 123, true}, // full-width digits
		{"See all 8,431 employees on LinkedIn", 8431, true},
		{"No results", 0, false},
		{"42", 42, true},
		{"9223372036854775807", 0, false},
		{"9999999999999999999999", 0, false},
		{"9223372036854775M", 0, false},
		{"99999999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPtr(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Ptr("none"))
	v := Ptr("7k")
	if assert.NotNil(t, v) {
		assert.Equal(t, int64(7000), *v)
	}
}
