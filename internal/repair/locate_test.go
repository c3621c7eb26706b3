package repair

import (
	"reflect"
	"testing"
)

// TestLocate_FlagsWrongWidths records every data line that misses the
// expected width, keyed by physical line number.
func TestLocate_FlagsWrongWidths(t *testing.T) {
	t.Parallel()

	p := writeTemp(t, "in.csv",
		";MATRICULE;CIN;NOM;PRENOM\n"+ // header, width 5 = expected+1, tolerated
			"1;x;a;b\n"+
			"2;y\n"+
			"\n"+
			"a;b;c\n"+
			"3;z;c;d\n")

	lw, err := Locate(p, Options{}, 4)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	want := LineWidths{3: 2, 5: 3}
	if !reflect.DeepEqual(lw, want) {
		t.Fatalf("Locate = %v, want %v", lw, want)
	}
	if got := SortedLines(lw); !reflect.DeepEqual(got, []int{3, 5}) {
		t.Fatalf("SortedLines = %v", got)
	}
}

// TestLocate_HeaderTolerance: the header is anomalous only when its width is
// neither expected nor expected+1.
func TestLocate_HeaderTolerance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		header   string
		expected int
		flagged  bool
	}{
		{"exact width", ";MATRICULE;CIN;X", 4, false},
		{"one wider", ";MATRICULE;CIN;X;Y", 4, false},
		{"two wider", ";MATRICULE;CIN;X;Y;Z", 4, true},
		{"narrower", ";MATRICULE;CIN", 4, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := writeTemp(t, "in.csv", tc.header+"\n1;a;b;c\n")
			lw, err := Locate(p, Options{}, tc.expected)
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			_, flagged := lw[1]
			if flagged != tc.flagged {
				t.Fatalf("header flagged = %v, want %v (map %v)", flagged, tc.flagged, lw)
			}
		})
	}
}

// TestLocate_CleanFile returns an empty map, not nil handling surprises.
func TestLocate_CleanFile(t *testing.T) {
	t.Parallel()

	p := writeTemp(t, "in.csv", "1;a;b\n2;c;d\n")
	lw, err := Locate(p, Options{}, 3)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(lw) != 0 {
		t.Fatalf("expected no anomalies, got %v", lw)
	}
}
