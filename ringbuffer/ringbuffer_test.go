package ringbuffer_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/jackerseq/jacker/ringbuffer"
)

func TestRoundTrip(t *testing.T) {
	r := ringbuffer.New[int](8)
	rng := rand.New(rand.NewSource(1))
	next, expected := 0, 0
	for iter := 0; iter < 1000; iter++ {
		n := rng.Intn(r.WriteAvailable() + 1)
		data := make([]int, n)
		for i := range data {
			data[i] = next
			next++
		}
		if !r.Write(data) {
			t.Fatalf("write of %d elements failed with %d available", n, r.WriteAvailable())
		}
		m := rng.Intn(r.ReadAvailable() + 1)
		out := make([]int, m)
		if !r.Read(out, false) {
			t.Fatalf("read of %d elements failed with %d available", m, r.ReadAvailable())
		}
		for _, v := range out {
			if v != expected {
				t.Fatalf("read %d, expected %d", v, expected)
			}
			expected++
		}
		if got := r.ReadAvailable() + r.WriteAvailable(); got != r.Size()-1 {
			t.Fatalf("ReadAvailable+WriteAvailable = %d, expected %d", got, r.Size()-1)
		}
	}
}

func TestCapacityIsSizeMinusOne(t *testing.T) {
	r := ringbuffer.New[byte](4)
	if got := r.WriteAvailable(); got != 3 {
		t.Fatalf("WriteAvailable on empty buffer = %d, expected 3", got)
	}
	if !r.Write([]byte{1, 2, 3}) {
		t.Fatal("writing 3 elements into a 4 slot buffer failed")
	}
	if r.Push(4) {
		t.Fatal("Push into a full buffer succeeded")
	}
	if r.Write([]byte{4}) {
		t.Fatal("Write into a full buffer succeeded")
	}
	if got := r.Overflows(); got != 2 {
		t.Fatalf("Overflows = %d, expected 2", got)
	}
}

func TestOverflowDropsWholeWrite(t *testing.T) {
	r := ringbuffer.New[int](4)
	r.Write([]int{1, 2})
	if r.Write([]int{3, 4}) {
		t.Fatal("expected overflow")
	}
	out := make([]int, 2)
	r.Read(out, false)
	if out[0] != 1 || out[1] != 2 {
		t.Fatalf("got %v, expected [1 2]", out)
	}
	if r.ReadAvailable() != 0 {
		t.Fatalf("partial write leaked %d elements", r.ReadAvailable())
	}
}

func TestUnderflowLeavesOutputUntouched(t *testing.T) {
	r := ringbuffer.New[int](4)
	r.Push(7)
	out := []int{-1, -1}
	if r.Read(out, false) {
		t.Fatal("read of 2 elements with 1 available succeeded")
	}
	if out[0] != -1 || out[1] != -1 {
		t.Fatalf("output modified on underflow: %v", out)
	}
	if r.ReadAvailable() != 1 {
		t.Fatal("failed read consumed data")
	}
}

func TestPeek(t *testing.T) {
	r := ringbuffer.New[string](4)
	r.Write([]string{"a", "b"})
	out := make([]string, 2)
	r.Read(out, true)
	if r.ReadAvailable() != 2 {
		t.Fatalf("peek advanced the read cursor")
	}
	if v, _ := r.Peek(); v != "a" {
		t.Fatalf("Peek = %q, expected a", v)
	}
	if v, ok := r.Pop(); !ok || v != "a" {
		t.Fatalf("Pop = %q, %v", v, ok)
	}
}

func TestWrapAround(t *testing.T) {
	r := ringbuffer.New[int](5)
	r.Write([]int{0, 1, 2})
	r.Read(make([]int, 3), false)
	r.Write([]int{3, 4, 5, 6}) // wraps past the end of the slice
	out := make([]int, 4)
	if !r.Read(out, false) {
		t.Fatal("read failed")
	}
	for i, v := range out {
		if v != i+3 {
			t.Fatalf("out[%d] = %d, expected %d", i, v, i+3)
		}
	}
}

func TestDiscard(t *testing.T) {
	r := ringbuffer.New[int](8)
	r.Write([]int{1, 2, 3})
	r.Discard()
	if r.ReadAvailable() != 0 || r.WriteAvailable() != 7 {
		t.Fatalf("after Discard: read %d write %d", r.ReadAvailable(), r.WriteAvailable())
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const total = 100000
	r := ringbuffer.New[int](64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if r.Push(i) {
				i++
			}
		}
	}()
	for expected := 0; expected < total; {
		v, ok := r.Pop()
		if !ok {
			continue
		}
		if v != expected {
			t.Fatalf("received %d, expected %d", v, expected)
		}
		expected++
	}
	wg.Wait()
}

func TestConcurrentBlockWriteRead(t *testing.T) {
	const total = 100000
	// neither the chunk sizes nor the capacity divide each other, so most
	// chunks are copied in two parts across the end of the buffer
	r := ringbuffer.New[int](61)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		chunk := make([]int, 0, 17)
		for i, k := 0, 0; i < total; k++ {
			n := min(1+k%17, total-i)
			chunk = chunk[:n]
			for j := range chunk {
				chunk[j] = i + j
			}
			for !r.Write(chunk) {
			}
			i += n
		}
	}()
	chunk := make([]int, 13)
	for expected, k := 0, 0; expected < total; k++ {
		n := min(1+k%13, total-expected)
		for !r.Read(chunk[:n], false) {
		}
		for j, v := range chunk[:n] {
			if v != expected+j {
				t.Fatalf("received %d at %d, expected %d", v, expected+j, expected+j)
			}
		}
		expected += n
	}
	wg.Wait()
	if r.ReadAvailable() != 0 {
		t.Fatalf("%d elements left in the buffer", r.ReadAvailable())
	}
}
