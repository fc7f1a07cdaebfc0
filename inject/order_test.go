package inject

import (
	"reflect"
	"testing"
)

func TestTopoOrder(t *testing.T) {
	tests := []struct {
		name   string
		deps   [][]int
		order  []int
		cycles [][]int
	}{
		{
			name:  "empty",
			deps:  nil,
			order: nil,
		},
		{
			name:  "already ordered",
			deps:  [][]int{nil, {0}, {1}},
			order: []int{0, 1, 2},
		},
		{
			name:  "reversed",
			deps:  [][]int{{1}, {2}, nil},
			order: []int{2, 1, 0},
		},
		{
			name:  "stable among independents",
			deps:  [][]int{{2}, nil, nil, {1}},
			order: []int{1, 2, 0, 3},
		},
		{
			name:  "diamond",
			deps:  [][]int{{1, 2}, {3}, {3}, nil},
			order: []int{3, 1, 2, 0},
		},
		{
			name:   "self loop",
			deps:   [][]int{{0}, nil},
			order:  []int{1},
			cycles: [][]int{{0}},
		},
		{
			name:   "two cycle with dependent",
			deps:   [][]int{{1}, {0}, {0}, nil},
			order:  []int{3, 2},
			cycles: [][]int{{0, 1}},
		},
		{
			name:   "independent cycles",
			deps:   [][]int{{1}, {0}, {3}, {4}, {2}, nil},
			order:  []int{5},
			cycles: [][]int{{0, 1}, {2, 3, 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, cycles := topoOrder(len(tt.deps), func(i int) []int { return tt.deps[i] })
			if !reflect.DeepEqual(order, tt.order) {
				t.Errorf("order = %v, want %v", order, tt.order)
			}
			if !reflect.DeepEqual(cycles, tt.cycles) {
				t.Errorf("cycles = %v, want %v", cycles, tt.cycles)
			}
		})
	}
}

func TestWalkCycle(t *testing.T) {
	deps := [][]int{{2}, {0}, {1}}
	got := walkCycle([]int{0, 1, 2}, func(i int) []int { return deps[i] })
	want := []int{0, 2, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}

	self := walkCycle([]int{4}, func(int) []int { return []int{4} })
	if !reflect.DeepEqual(self, []int{4, 4}) {
		t.Errorf("self loop path = %v", self)
	}
}
