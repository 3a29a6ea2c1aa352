package process

import (
	"errors"
	"reflect"
	"testing"
)

func mapFinder(tree map[int][]int) TreeFinder {
	return TreeFinderFunc(func(pid int) ([]int, error) {
		return tree[pid], nil
	})
}

func TestDescendantsListsChildrenBeforeParents(t *testing.T) {
	finder := mapFinder(map[int][]int{
		100: {200, 300},
		200: {210, 220},
		220: {221},
	})

	got := Descendants(finder, 100)
	want := []int{210, 221, 220, 200, 300}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	position := make(map[int]int, len(got))
	for i, pid := range got {
		position[pid] = i
	}
	for parent, children := range map[int][]int{200: {210, 220}, 220: {221}} {
		for _, child := range children {
			if position[child] > position[parent] {
				t.Fatalf("child %d listed after parent %d", child, parent)
			}
		}
	}
}

func TestDescendantsToleratesCyclesAndDuplicates(t *testing.T) {
	finder := mapFinder(map[int][]int{
		1: {2, 2, 1},
		2: {1, 3},
		3: {2},
	})
	got := Descendants(finder, 1)
	want := []int{3, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDescendantsPrunesFailedLookups(t *testing.T) {
	finder := TreeFinderFunc(func(pid int) ([]int, error) {
		switch pid {
		case 1:
			return []int{2, 3}, nil
		case 2:
			return nil, errors.New("gone")
		default:
			return nil, nil
		}
	})
	got := Descendants(finder, 1)
	if !reflect.DeepEqual(got, []int{2, 3}) {
		t.Fatalf("unexpected descendants %v", got)
	}
}

func TestTreeEndsWithRoot(t *testing.T) {
	got := Tree(mapFinder(map[int][]int{5: {6}}), 5)
	if !reflect.DeepEqual(got, []int{6, 5}) {
		t.Fatalf("unexpected tree %v", got)
	}
	if Tree(nil, 0) != nil {
		t.Fatalf("expected empty tree for invalid root")
	}
}

func TestParsePidsSkipsGarbage(t *testing.T) {
	got := parsePids([]byte("12\n\n  34 \nabc\n-1\n"))
	if !reflect.DeepEqual(got, []int{12, 34}) {
		t.Fatalf("unexpected pids %v", got)
	}
}
