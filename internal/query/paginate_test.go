package query

import (
	"math"
	"testing"
)

func TestPaginate(t *testing.T) {
	items := make([]int, 31)
	for i := range items {
		items[i] = i + 1
	}

	tests := []struct {
		page, size    int
		wantLen       int
		wantFirst     int
		wantNext      int // 0 means nil
		wantPrevious  int
		wantPageCount int
	}{
		{1, 15, 15, 1, 2, 0, 3},
		{2, 15, 15, 16, 3, 1, 3},
		{3, 15, 1, 31, 0, 2, 3},
		{4, 15, 0, 0, 0, 3, 3},
		{0, 0, 15, 1, 2, 0, 3},
		{1, 100, 31, 1, 0, 0, 1},
	}
	for _, tt := range tests {
		p := Paginate(items, tt.page, tt.size)
		if len(p.Results) != tt.wantLen {
			t.Errorf("page %d/%d: len = %d, want %d", tt.page, tt.size, len(p.Results), tt.wantLen)
		}
		if tt.wantLen > 0 && p.Results[0] != tt.wantFirst {
			t.Errorf("page %d/%d: first = %d, want %d", tt.page, tt.size, p.Results[0], tt.wantFirst)
		}
		if p.Meta.Count != 31 || p.Meta.Pages != tt.wantPageCount {
			t.Errorf("page %d/%d: meta = %+v", tt.page, tt.size, p.Meta)
		}
		if got := deref(p.Meta.Next); got != tt.wantNext {
			t.Errorf("page %d/%d: next = %d, want %d", tt.page, tt.size, got, tt.wantNext)
		}
		if got := deref(p.Meta.Previous); got != tt.wantPrevious {
			t.Errorf("page %d/%d: previous = %d, want %d", tt.page, tt.size, got, tt.wantPrevious)
		}
	}
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate([]string(nil), 1, 15)
	if p.Results == nil || len(p.Results) != 0 {
		t.Errorf("Results = %#v, want empty non-nil", p.Results)
	}
	if p.Meta.Pages != 0 || p.Meta.Next != nil || p.Meta.Previous != nil {
		t.Errorf("meta = %+v", p.Meta)
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func TestPaginateHugeValues(t *testing.T) {
	items := []int{1, 2, 3}

	p := Paginate(items, math.MaxInt, DefaultPageSize)
	if len(p.Results) != 0 || p.Meta.Count != 3 || p.Meta.Pages != 1 {
		t.Errorf("page MaxInt: %+v", p)
	}
	if p.Meta.Next != nil || deref(p.Meta.Previous) != math.MaxInt-1 {
		t.Errorf("page MaxInt: meta = %+v", p.Meta)
	}

	p = Paginate(items, 4611686018427387905, 15)
	if len(p.Results) != 0 {
		t.Errorf("large page: results = %v", p.Results)
	}

	p = Paginate(items, 1, math.MaxInt)
	if len(p.Results) != 3 || p.Meta.Pages != 1 || p.Meta.Next != nil {
		t.Errorf("size MaxInt: %+v", p)
	}
}
