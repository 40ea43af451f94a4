package utils

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSON(t *testing.T) {
	d, err := ParseDate("2025-03-21")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(struct {
		Date Date `json:"date"`
	}{d})
	if string(b) != `{"date":"2025-03-21"}` {
		t.Fatalf("json = %s", b)
	}
	var back struct {
		Date Date `json:"date"`
	}
	if err := json.Unmarshal(b, &back); err != nil || !back.Date.Equal(d) {
		t.Fatalf("round trip = %v, %v", back.Date, err)
	}
	if err := json.Unmarshal([]byte(`{"date":"21/03/2025"}`), &back); err == nil {
		t.Fatal("expected format error")
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2025, 3, 21, 0, 0, 0, 0, time.FixedZone("IST", 19800))); err != nil {
		t.Fatal(err)
	}
	if d.String() != "2025-03-21" {
		t.Fatalf("scanned = %s", d)
	}
	if DateOf(time.Date(2025, 3, 21, 23, 59, 0, 0, time.UTC)).String() != "2025-03-21" {
		t.Fatal("DateOf dropped the day")
	}
}
