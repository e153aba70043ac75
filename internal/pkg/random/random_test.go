package random

import (
	"reflect"
	"sort"
	"testing"
)

func TestShuffledDeterministic(t *testing.T) {
	values := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	first := Shuffled(NewSource(42), values)
	second := Shuffled(NewSource(42), values)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Expected: %v, got: %v", first, second)
	}
	sorted := append([]int64(nil), first...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if !reflect.DeepEqual(sorted, values) {
		t.Fatalf("Expected permutation of %v, got: %v", values, first)
	}
	if values[0] != 1 || values[7] != 8 {
		t.Fatal("Input should not be modified")
	}
}

func TestCryptoSeededSource(t *testing.T) {
	src, err := NewCryptoSeededSource()
	if err != nil {
		t.Fatal("Error:", err)
	}
	values := []int{1, 2, 3}
	shuffled := Shuffled(src, values)
	sort.Ints(shuffled)
	if !reflect.DeepEqual(shuffled, values) {
		t.Fatalf("Expected permutation of %v, got: %v", values, shuffled)
	}
}
