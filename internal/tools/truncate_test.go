package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateOutput(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		budget      int
		wantOmitted int
		want        string
	}{
		{name: "fits", in: "hello", budget: 10, want: "hello"},
		{name: "no budget", in: "hello", budget: 0, want: "hello"},
		{
			name:        "head and tail",
			in:          "0123456789abcdefghij",
			budget:      8,
			wantOmitted: 12,
			want:        "012345\n\n... [12 characters omitted] ...\n\nij",
		},
		{
			name:        "counts runes",
			in:          strings.Repeat("é", 10),
			budget:      4,
			wantOmitted: 6,
			want:        "ééé\n\n... [6 characters omitted] ...\n\né",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, omitted := TruncateOutput(tt.in, tt.budget)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOmitted, omitted)
		})
	}
}
