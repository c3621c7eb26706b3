package metrics

import "testing"

type recordingBackend struct {
	counters map[string]float64
	flushed  int
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	if r.counters == nil {
		r.counters = map[string]float64{}
	}
	r.counters[name+"/"+labels["status"]] += delta
}

func (r *recordingBackend) ObserveHistogram(string, float64, Labels) {}

func (r *recordingBackend) Flush() error {
	r.flushed++
	return nil
}

func TestPackageLevelForwarding(t *testing.T) {
	rec := &recordingBackend{}
	SetBackend(rec)
	defer SetBackend(nil) // restore nop

	IncCounter(FilesTotal, 1, Labels{"status": "ok"})
	IncCounter(FilesTotal, 2, Labels{"status": "ok"})
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if rec.counters[FilesTotal+"/ok"] != 3 {
		t.Fatalf("counters = %v", rec.counters)
	}
	if rec.flushed != 1 {
		t.Fatalf("flushed = %d", rec.flushed)
	}
}

func TestSetBackend_NilRestoresNop(t *testing.T) {
	SetBackend(nil)
	// Must not panic.
	IncCounter(FilesTotal, 1, nil)
	ObserveHistogram(FileDurationSeconds, 1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
