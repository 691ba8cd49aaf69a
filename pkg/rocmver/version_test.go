package rocmver

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{name: "full version", input: "6.4.3", want: Version{6, 4, 3}},
		{name: "series only", input: "6.4", want: Version{6, 4, 0}},
		{name: "trailing slash from listing", input: "7.0.1/", want: Version{7, 0, 1}},
		{name: "rocm prefix", input: "rocm-6.3.2", want: Version{6, 3, 2}},
		{name: "v prefix", input: "v6.4.0", want: Version{6, 4, 0}},
		{name: "surrounding whitespace", input: "  6.4.3 ", want: Version{6, 4, 3}},
		{name: "empty", input: "", wantErr: true},
		{name: "single component", input: "6", wantErr: true},
		{name: "four components", input: "6.4.3.1", wantErr: true},
		{name: "non-numeric component", input: "6.x.3", wantErr: true},
		{name: "negative component", input: "6.-1.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "equal", a: "6.4.3", b: "6.4.3", want: 0},
		{name: "patch greater", a: "6.4.4", b: "6.4.3", want: 1},
		{name: "patch lesser", a: "6.4.2", b: "6.4.3", want: -1},
		{name: "minor dominates patch", a: "6.5.0", b: "6.4.9", want: 1},
		{name: "major dominates minor", a: "7.0.0", b: "6.9.9", want: 1},
		{name: "numeric not lexicographic", a: "6.10.0", b: "6.9.0", want: 1},
		{name: "series vs full", a: "6.4", b: "6.4.1", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := MustParse(tt.a), MustParse(tt.b)
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			// Compare must be antisymmetric.
			if got := b.Compare(a); got != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestSeries(t *testing.T) {
	v := MustParse("6.4.3")
	if got := v.Series(); got != "6.4" {
		t.Errorf("Series() = %q, want %q", got, "6.4")
	}
	if got := v.String(); got != "6.4.3" {
		t.Errorf("String() = %q, want %q", got, "6.4.3")
	}
}
