package domain

import (
	"math"
	"testing"
)

func TestNewPageRequestDefaults(t *testing.T) {
	req, err := NewPageRequest(0, 0, "")
	if err != nil {
		t.Fatalf("new page request: %v", err)
	}
	if req.Size != DefaultPageSize || req.SortField != "id" || req.SortDir != SortAsc {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	req, err = NewPageRequest(2, 500, "Title,DESC")
	if err != nil {
		t.Fatalf("new page request: %v", err)
	}
	if req.Size != MaxPageSize || req.SortField != "title" || req.SortDir != SortDesc || req.Offset() != 200 {
		t.Fatalf("unexpected request: %+v offset=%d", req, req.Offset())
	}
}

func TestNewPageRequestRejectsOverflowingPage(t *testing.T) {
	if _, err := NewPageRequest(math.MaxInt/50, 100, ""); err == nil {
		t.Fatalf("expected out of range error")
	}
	// size 0 means the default page size
	if _, err := NewPageRequest(math.MaxInt/DefaultPageSize+1, 0, ""); err == nil {
		t.Fatalf("expected out of range error with default size")
	}
	req, err := NewPageRequest(math.MaxInt/100, 100, "")
	if err != nil {
		t.Fatalf("largest page should be accepted: %v", err)
	}
	if req.Offset() < 0 {
		t.Fatalf("offset overflowed: %d", req.Offset())
	}
}

func TestOffsetSaturates(t *testing.T) {
	req := PageRequest{Page: math.MaxInt / 50, Size: 100}
	if got := req.Offset(); got != math.MaxInt {
		t.Fatalf("offset = %d, want MaxInt", got)
	}
	if got := (PageRequest{Page: -3, Size: 10}).Offset(); got != 0 {
		t.Fatalf("negative page offset = %d, want 0", got)
	}
}

func TestOrderClause(t *testing.T) {
	cases := []struct {
		req  PageRequest
		want string
	}{
		{PageRequest{}, "id ASC"},
		{PageRequest{SortField: "id", SortDir: SortDesc}, "id DESC"},
		{PageRequest{SortField: "title", SortDir: SortDesc}, "title DESC, id ASC"},
		{PageRequest{SortField: "isbn"}, "isbn ASC, id ASC"},
		{PageRequest{SortField: "publisher"}, "id ASC"},
	}
	for _, tc := range cases {
		if got := tc.req.OrderClause(); got != tc.want {
			t.Fatalf("OrderClause(%+v) = %q, want %q", tc.req, got, tc.want)
		}
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage[Book](nil, PageRequest{Page: 1, Size: 2}, 3)
	if p.Content == nil || p.TotalPages != 2 || p.First || !p.Last || p.Number != 1 {
		t.Fatalf("unexpected page: %+v", p)
	}
}
