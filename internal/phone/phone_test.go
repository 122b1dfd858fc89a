package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw   string
		want  string
		valid bool
	}{
		{"+7 (999) 123-45-67", "79991234567", true},
		{"89991234567", "79991234567", true},
		{"9991234567", "79991234567", true},
		{"79991234567", "79991234567", true},
		{"", "", false},
		{"abc123", "", false},
		{"123", "", false},
		{"+1 234 567 8901", "", false},
		{"799912345678", "", false},
		{"٩٩٩١٢٣٤٥٦٧", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeShapeIsTotal(t *testing.T) {
	t.Parallel()

	inputs := []string{"7", "8 800 555 35 35", "+44 20 7946 0958", "tel:9161234567", "\x00\xff", "  "}
	for _, in := range inputs {
		got, ok := Normalize(in)
		if !ok {
			assert.Empty(t, got)
			continue
		}
		assert.Len(t, got, 11)
		assert.Equal(t, byte('7'), got[0])
	}
}
