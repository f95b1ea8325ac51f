package batcher

import (
	"reflect"
	"testing"
)

func TestSplitChunks(t *testing.T) {
	got, err := SplitChunks(5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Chunk{
		{From: 0, To: 1},
		{From: 2, To: 3},
		{From: 4, To: 4},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("chunks mismatch: %+v != %+v", got, want)
	}
}

func TestSplitChunksSingle(t *testing.T) {
	got, err := SplitChunks(1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Chunk{{From: 0, To: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("chunks mismatch: %+v != %+v", got, want)
	}
}

func TestSplitChunksEmpty(t *testing.T) {
	got, err := SplitChunks(0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no chunks, got %+v", got)
	}
}

func TestSplitChunksInvalid(t *testing.T) {
	if _, err := SplitChunks(10, 0); err == nil {
		t.Fatalf("expected error for zero chunk size")
	}
	if _, err := SplitChunks(-1, 2); err == nil {
		t.Fatalf("expected error for negative count")
	}
}
