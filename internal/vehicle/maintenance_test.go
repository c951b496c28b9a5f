package vehicle

import "testing"

func TestServiceDue(t *testing.T) {
	cases := []struct {
		name     string
		current  int64
		last     int64
		interval int64
		want     bool
	}{
		{"new vehicle", 0, 0, 10000, false},
		{"below first interval", 9999, 0, 10000, false},
		{"exactly at interval", 10000, 0, 10000, true},
		{"just over interval", 10001, 0, 10000, true},
		{"serviced recently", 10500, 10200, 10000, false},
		{"crossed next boundary", 20000, 10200, 10000, true},
		{"skipped several intervals", 35000, 9000, 10000, true},
		{"same segment high mileage", 19999, 10000, 10000, false},
		{"custom interval due", 5000, 4000, 5000, true},
		{"custom interval not due", 4999, 0, 5000, false},
		{"zero interval falls back to default", 10000, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &Vehicle{CurrentMileage: tc.current, LastServiceMileage: tc.last}
			if got := ServiceDue(v, tc.interval); got != tc.want {
				t.Fatalf("ServiceDue(cur=%d last=%d interval=%d) = %v, want %v",
					tc.current, tc.last, tc.interval, got, tc.want)
			}
		})
	}

	if ServiceDue(nil, 10000) {
		t.Fatalf("nil vehicle must never be due")
	}
}
