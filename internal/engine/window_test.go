package engine

import (
	"math"
	"testing"
)

func TestWindow_MeanEmpty(t *testing.T) {
	w := NewWindow(20)
	if got := w.Mean(); got != 0 {
		t.Errorf("Mean() on empty window = %v, want 0", got)
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
}

func TestWindow_AppendAndMean(t *testing.T) {
	w := NewWindow(20)
	w.Append(4.00)
	w.Append(5.00)
	w.Append(6.00)

	if got := w.Mean(); math.Abs(got-5.00) > 1e-9 {
		t.Errorf("Mean() = %v, want 5.00", got)
	}
	if w.Len() != 3 {
		t.Errorf("Len() = %d, want 3", w.Len())
	}
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow(3)
	w.Append(1.00)
	w.Append(2.00)
	w.Append(3.00)
	w.Append(4.00) // 淘汰 1.00

	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", w.Len())
	}

	values := w.Values()
	want := []float64{2.00, 3.00, 4.00}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("Values()[%d] = %v, want %v", i, values[i], v)
		}
	}

	if got := w.Mean(); math.Abs(got-3.00) > 1e-9 {
		t.Errorf("Mean() = %v, want 3.00", got)
	}
}

func TestWindow_LenNeverExceedsCap(t *testing.T) {
	w := NewWindow(5)
	for i := 0; i < 100; i++ {
		w.Append(float64(i))
		if w.Len() > w.Cap() {
			t.Fatalf("Len() = %d exceeds Cap() = %d after %d appends", w.Len(), w.Cap(), i+1)
		}
	}
	if w.Len() != 5 {
		t.Errorf("Len() = %d, want 5", w.Len())
	}
}

func TestWindow_Reset(t *testing.T) {
	w := NewWindow(10)
	w.Append(3.50)
	w.Append(4.50)

	w.Reset()

	if w.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", w.Len())
	}
	if w.Mean() != 0 {
		t.Errorf("Mean() after Reset = %v, want 0", w.Mean())
	}
	if w.Cap() != 10 {
		t.Errorf("Cap() after Reset = %d, want 10", w.Cap())
	}
}

func TestNewWindow_DefaultCapacity(t *testing.T) {
	w := NewWindow(0)
	if w.Cap() != 20 {
		t.Errorf("Cap() = %d, want default 20", w.Cap())
	}
	w = NewWindow(-5)
	if w.Cap() != 20 {
		t.Errorf("Cap() = %d, want default 20", w.Cap())
	}
}

func TestWindow_ValuesIsCopy(t *testing.T) {
	w := NewWindow(5)
	w.Append(1.00)

	values := w.Values()
	values[0] = 99.0

	if w.Values()[0] != 1.00 {
		t.Error("mutating Values() result leaked into the window")
	}
}
