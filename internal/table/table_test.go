package table

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func keys(records []Record, field string) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r[field]
	}
	return out
}

func TestSortEmpty(t *testing.T) {
	for _, dir := range []Direction{Ascending, Descending, None} {
		got := Sort(nil, SortConfig{Key: "k", Direction: dir})
		if got == nil || len(got) != 0 {
			t.Fatalf("Sort(nil, %q) = %#v, want empty slice", dir, got)
		}
		got = Sort([]Record{}, SortConfig{Key: "k", Direction: dir})
		if len(got) != 0 {
			t.Fatalf("Sort([], %q) returned %d records", dir, len(got))
		}
	}
}

func TestSortNoneKeepsOrder(t *testing.T) {
	records := []Record{{"amount": 3}, {"amount": 1}, {"amount": 2}}
	got := Sort(records, SortConfig{Key: "amount", Direction: None})
	if !reflect.DeepEqual(keys(got, "amount"), []any{3, 1, 2}) {
		t.Fatalf("unexpected order %v", keys(got, "amount"))
	}
}

func TestSortNilLast(t *testing.T) {
	records := []Record{{"k": 5}, {"k": nil}, {"k": 2}}

	asc := Sort(records, SortConfig{Key: "k", Direction: Ascending})
	if !reflect.DeepEqual(keys(asc, "k"), []any{2, 5, nil}) {
		t.Fatalf("ascending = %v", keys(asc, "k"))
	}

	desc := Sort(records, SortConfig{Key: "k", Direction: Descending})
	if !reflect.DeepEqual(keys(desc, "k"), []any{5, 2, nil}) {
		t.Fatalf("descending = %v", keys(desc, "k"))
	}
}

func TestSortAbsentFieldLast(t *testing.T) {
	records := []Record{{"id": "a"}, {"id": "b", "k": 1.5}, {"id": "c", "k": int64(-3)}}
	for _, dir := range []Direction{Ascending, Descending} {
		got := Sort(records, SortConfig{Key: "k", Direction: dir})
		if got[2]["id"] != "a" {
			t.Fatalf("%s: record without the key should be last, got %v", dir, keys(got, "id"))
		}
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	records := []Record{{"k": 3}, {"k": 1}, {"k": 2}}
	_ = Sort(records, SortConfig{Key: "k", Direction: Ascending})
	if !reflect.DeepEqual(keys(records, "k"), []any{3, 1, 2}) {
		t.Fatalf("input mutated: %v", keys(records, "k"))
	}
}

func TestSortStrings(t *testing.T) {
	records := []Record{{"name": "Zainab"}, {"name": "ahmad"}, {"name": "Budi"}, {"name": "Ásiyah"}}

	asc := Sort(records, SortConfig{Key: "name", Direction: Ascending})
	want := []any{"ahmad", "Ásiyah", "Budi", "Zainab"}
	if !reflect.DeepEqual(keys(asc, "name"), want) {
		t.Fatalf("ascending = %v, want %v", keys(asc, "name"), want)
	}

	desc := Sort(records, SortConfig{Key: "name", Direction: Descending})
	want = []any{"Zainab", "Budi", "Ásiyah", "ahmad"}
	if !reflect.DeepEqual(keys(desc, "name"), want) {
		t.Fatalf("descending = %v, want %v", keys(desc, "name"), want)
	}
}

func TestSortMixedNumericKinds(t *testing.T) {
	records := []Record{{"k": float64(2.5)}, {"k": int64(10)}, {"k": 1}}
	got := Sort(records, SortConfig{Key: "k", Direction: Ascending})
	if !reflect.DeepEqual(keys(got, "k"), []any{1, float64(2.5), int64(10)}) {
		t.Fatalf("unexpected order %v", keys(got, "k"))
	}
}

func TestSortLargeIntegers(t *testing.T) {
	big := int64(1) << 60
	records := []Record{{"k": big + 1}, {"k": big}, {"k": uint64(big) + 2}}
	got := Sort(records, SortConfig{Key: "k", Direction: Ascending})
	want := []any{big, big + 1, uint64(big) + 2}
	if !reflect.DeepEqual(keys(got, "k"), want) {
		t.Fatalf("ascending = %v, want %v", keys(got, "k"), want)
	}
}

func TestSortStable(t *testing.T) {
	records := []Record{
		{"id": 1, "class": "7A"},
		{"id": 2, "class": "7B"},
		{"id": 3, "class": "7A"},
		{"id": 4, "class": "7B"},
		{"id": 5, "class": "7A"},
	}
	asc := Sort(records, SortConfig{Key: "class", Direction: Ascending})
	if !reflect.DeepEqual(keys(asc, "id"), []any{1, 3, 5, 2, 4}) {
		t.Fatalf("ascending ties reordered: %v", keys(asc, "id"))
	}
	desc := Sort(records, SortConfig{Key: "class", Direction: Descending})
	if !reflect.DeepEqual(keys(desc, "id"), []any{2, 4, 1, 3, 5}) {
		t.Fatalf("descending ties reordered: %v", keys(desc, "id"))
	}
}

func TestSortMixedTypesCompareEqual(t *testing.T) {
	records := []Record{{"id": 1, "k": "x"}, {"id": 2, "k": 7}}
	for _, dir := range []Direction{Ascending, Descending} {
		got := Sort(records, SortConfig{Key: "k", Direction: dir})
		if !reflect.DeepEqual(keys(got, "id"), []any{1, 2}) {
			t.Fatalf("%s: mixed types should keep input order, got %v", dir, keys(got, "id"))
		}
	}

	bools := []Record{{"id": 1, "k": true}, {"id": 2, "k": false}}
	got := Sort(bools, SortConfig{Key: "k", Direction: Ascending})
	if !reflect.DeepEqual(keys(got, "id"), []any{1, 2}) {
		t.Fatalf("unsupported types should keep input order, got %v", keys(got, "id"))
	}
}

type row struct {
	name string
	paid int64
}

func TestSortBy(t *testing.T) {
	rows := []row{{"b", 20}, {"a", 10}, {"c", 30}}
	field := func(r row, key string) any {
		switch key {
		case "name":
			return r.name
		case "paid":
			return r.paid
		}
		return nil
	}
	got := SortBy(rows, SortConfig{Key: "paid", Direction: Descending}, field)
	if got[0].name != "c" || got[2].name != "a" {
		t.Fatalf("unexpected order %+v", got)
	}
	if rows[0].name != "b" {
		t.Fatalf("input mutated")
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	cases := []struct {
		name     string
		items    []int
		page     int
		pageSize int
		want     []int
	}{
		{"second page", items, 2, 2, []int{3, 4}},
		{"last partial page", items, 3, 2, []int{5}},
		{"first page", items, 1, 10, []int{1, 2, 3, 4, 5}},
		{"out of range", []int{1, 2, 3}, 5, 2, []int{}},
		{"zero page clamps to first", items, 0, 2, []int{1, 2}},
		{"negative page clamps to first", items, -3, 2, []int{1, 2}},
		{"empty input", nil, 1, 10, []int{}},
		{"huge page does not wrap", []int{1, 2, 3}, 1<<62 + 1, 4, []int{}},
		{"max page", items, math.MaxInt, 2, []int{}},
		{"max page size", items, 2, math.MaxInt, []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Paginate(tc.items, tc.page, tc.pageSize)
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Paginate(page=%d, size=%d) = %v, want %v", tc.page, tc.pageSize, got, tc.want)
			}
		})
	}
}

func TestPaginateInvalidPageSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Paginate([]int{1}, 1, size); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Paginate size %d: expected ErrInvalidArgument, got %v", size, err)
		}
	}
}

func TestPaginateCopies(t *testing.T) {
	items := []int{1, 2, 3}
	got, _ := Paginate(items, 1, 2)
	got[0] = 99
	if items[0] != 1 {
		t.Fatalf("page shares memory with input")
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, size, want int
	}{
		{10, 3, 4},
		{0, 3, 0},
		{9, 3, 3},
		{1, 10, 1},
		{11, 10, 2},
		{5, math.MaxInt, 1},
	}
	for _, tc := range cases {
		got, err := TotalPages(tc.total, tc.size)
		if err != nil {
			t.Fatalf("TotalPages(%d, %d): %v", tc.total, tc.size, err)
		}
		if got != tc.want {
			t.Fatalf("TotalPages(%d, %d) = %d, want %d", tc.total, tc.size, got, tc.want)
		}
	}
	if _, err := TotalPages(10, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{"asc": Ascending, "DESC": Descending, "": None, "none": None}
	for in, want := range cases {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Fatalf("ParseDirection(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestApply(t *testing.T) {
	var records []Record
	for i := 1; i <= 25; i++ {
		records = append(records, Record{"n": i})
	}
	page, err := Apply(records, Window{Page: 3, PerPage: 10, Sort: SortConfig{Key: "n", Direction: Descending}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if page.TotalItems != 25 || page.TotalPages != 3 || len(page.Items) != 5 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0]["n"] != 5 || page.Items[4]["n"] != 1 {
		t.Fatalf("unexpected items %v", keys(page.Items, "n"))
	}
}
