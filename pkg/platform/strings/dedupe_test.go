package strings

import (
	"reflect"
	"testing"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "removes duplicates preserving order",
			input: []string{"30301", "30302", "30301"},
			want:  []string{"30301", "30302"},
		},
		{
			name:  "trims whitespace before comparing",
			input: []string{"  30301 ", "30301", " 30310"},
			want:  []string{"30301", "30310"},
		},
		{
			name:  "drops empty and blank entries",
			input: []string{"", "  ", "30301"},
			want:  []string{"30301"},
		},
		{
			name:  "nil stays nil",
			input: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeAndTrim(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DedupeAndTrim(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
