package reloc

import "testing"

func TestNewBitmapStartsAllOnes(t *testing.T) {
	b := NewBitmap(40)
	if got, want := b.WordCount(), 2; got != want {
		t.Fatalf("WordCount() = %d, want %d", got, want)
	}
	for i := 0; i < b.WordCount(); i++ {
		if b.Word(i) != ^uint32(0) {
			t.Errorf("word %d = %#x, want all-ones", i, b.Word(i))
		}
	}
}

func TestSetClearRoundTrip(t *testing.T) {
	b := NewBitmap(64)
	b.Clear(5)
	b.Clear(40)
	if b.Word(0)&(1<<5) != 0 {
		t.Error("bit 5 should be cleared")
	}
	if b.Word(1)&(1<<(40%32)) != 0 {
		t.Error("bit 40 should be cleared")
	}
	b.Set(5)
	if b.Word(0)&(1<<5) == 0 {
		t.Error("bit 5 should be set again")
	}
}

func TestIteratorWalksClearedBitsAscending(t *testing.T) {
	b := NewBitmap(70)
	for _, bit := range []int{2, 31, 32, 69} {
		b.Clear(bit)
	}
	var got []int
	it := newIterator(b)
	for {
		idx, ok := it.next()
		if !ok {
			break
		}
		got = append(got, idx)
	}
	want := []int{2, 31, 32, 69}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestIteratorEmptyWhenAllSet(t *testing.T) {
	b := NewBitmap(10)
	it := newIterator(b)
	if _, ok := it.next(); ok {
		t.Error("iterator over an all-ones bitmap should yield nothing to retry")
	}
}
