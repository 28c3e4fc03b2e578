package textsim

import (
	"math"
	"testing"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "identical text",
			a:    "Papelaria Local",
			b:    "Papelaria Local",
			want: 1.0,
		},
		{
			name: "case and punctuation insensitive",
			a:    "Office supplies, misc.",
			b:    "office SUPPLIES misc",
			want: 1.0,
		},
		{
			name: "disjoint",
			a:    "team lunch",
			b:    "printer toner",
			want: 0.0,
		},
		{
			name: "partial overlap",
			a:    "office chairs batch one",
			b:    "office chairs batch two",
			want: 3.0 / 5.0,
		},
		{
			name: "both empty",
			a:    "",
			b:    "",
			want: 0.0,
		},
		{
			name: "one empty",
			a:    "anything",
			b:    "",
			want: 0.0,
		},
		{
			name: "punctuation only is empty",
			a:    "... --- !!!",
			b:    "... !!!",
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jaccard(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestJaccardSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"dinner with client", "client dinner downtown"},
		{"Papelaria Local", "papelaria local item 2"},
		{"", "one sided"},
	}
	for _, p := range pairs {
		if ab, ba := Jaccard(p[0], p[1]), Jaccard(p[1], p[0]); ab != ba {
			t.Errorf("Jaccard not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestJaccardRange(t *testing.T) {
	got := Jaccard("a b c", "c d e f")
	if got < 0 || got > 1 {
		t.Errorf("Jaccard out of range: %v", got)
	}
}
