package repair

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// TestCollectRejected_PairsStayAdjacent: an anomalous line drags its
// anomalous successor into the review file next to it, once each.
func TestCollectRejected_PairsStayAdjacent(t *testing.T) {
	t.Parallel()

	src := writeTemp(t, "in.csv",
		";MATRICULE;CIN;NOM\n"+ // line 1
			"1;x;a;b\n"+ // line 2, clean
			"2;y\n"+ // line 3, anomalous
			"c;d\n"+ // line 4, anomalous (continuation)
			"3;z;e;f\n"+ // line 5, clean
			"4;w\n") // line 6, anomalous

	dst := filepath.Join(t.TempDir(), "rejected", "rejected_in.csv")
	n, err := CollectRejected(src, dst, Options{}, LineWidths{3: 2, 4: 2, 6: 2})
	if err != nil {
		t.Fatalf("CollectRejected: %v", err)
	}
	if n != 3 {
		t.Fatalf("written = %d, want 3", n)
	}
	got := readBack(t, dst)
	want := []string{";MATRICULE;CIN;NOM", "2;y", "c;d", "4;w"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

// TestCollectRejected_EmptySetWritesNothing: no anomalies means no review
// file at all.
func TestCollectRejected_EmptySetWritesNothing(t *testing.T) {
	t.Parallel()

	src := writeTemp(t, "in.csv", "1;a\n")
	dst := filepath.Join(t.TempDir(), "rejected.csv")

	n, err := CollectRejected(src, dst, Options{}, nil)
	if err != nil {
		t.Fatalf("CollectRejected: %v", err)
	}
	if n != 0 {
		t.Fatalf("written = %d, want 0", n)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("review file should not exist, stat err = %v", err)
	}
}

// TestCollectRejected_Latin1SourceUTF8Output: the review file is always
// UTF-8, whatever the source resolved to.
func TestCollectRejected_Latin1SourceUTF8Output(t *testing.T) {
	t.Parallel()

	src := writeTemp(t, "in.csv", "1;caf\xe9;x\n2;y\n")
	dst := filepath.Join(t.TempDir(), "rejected.csv")

	n, err := CollectRejected(src, dst, Options{}, LineWidths{2: 2})
	if err != nil {
		t.Fatalf("CollectRejected: %v", err)
	}
	if n != 1 {
		t.Fatalf("written = %d, want 1", n)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	// The Latin-1 0xE9 comes out as the two-byte UTF-8 sequence for 'é'.
	want := "1;caf\xc3\xa9;x\n2;y\n"
	if string(b) != want {
		t.Fatalf("output bytes = %q, want %q", b, want)
	}
}
