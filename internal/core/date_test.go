package core

import (
	"testing"
	"time"
)

func TestParseDayFirstDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"05/01/2024", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"5/1/2024", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"05-01-2024", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"05.01.2024", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2024-01-05", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"31/12/2023 23:15", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{" 05/01/2024 ", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"32/01/2024", time.Time{}, false},
		{"05/13/2024", time.Time{}, false}, // day-first locale: 13 is not a month
	}
	for _, tc := range cases {
		got, err := ParseDayFirstDate(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q unexpected error: %v", tc.in, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("%q = %v, want %v", tc.in, got, tc.want)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %v", tc.in, got)
		}
	}
}

func TestSortByDateIsStable(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{Date: d.AddDate(0, 0, 2), Description: "c"},
		{Date: d, Description: "a"},
		{Date: d, Description: "b"},
	}
	SortByDate(txs)
	if txs[0].Description != "a" || txs[1].Description != "b" || txs[2].Description != "c" {
		t.Fatalf("unexpected order: %v %v %v", txs[0].Description, txs[1].Description, txs[2].Description)
	}
}
