package model

import (
	"reflect"
	"testing"
)

func TestValidForPersistence(t *testing.T) {
	base := JobListing{Title: "Data Engineer", Company: "ACME", Location: "Paris"}

	tests := []struct {
		name   string
		mutate func(*JobListing)
		want   bool
	}{
		{"complete listing", func(*JobListing) {}, true},
		{"blank title", func(l *JobListing) { l.Title = "   " }, false},
		{"blank company", func(l *JobListing) { l.Company = "" }, false},
		{"missing location", func(l *JobListing) { l.Location = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := base
			tt.mutate(&l)
			if got := l.ValidForPersistence(); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupeKeyIsCaseInsensitive(t *testing.T) {
	a := JobListing{Title: "Data Engineer", Company: "ACME"}
	b := JobListing{Title: "data engineer", Company: "acme"}
	if a.DedupeKey() != b.DedupeKey() {
		t.Fatal("expected identical keys for case variants")
	}
	c := JobListing{Title: "Data Engineer", Company: "Globex"}
	if a.DedupeKey() == c.DedupeKey() {
		t.Fatal("different companies must produce different keys")
	}
}

func TestDedupeSkills(t *testing.T) {
	in := []string{"Go", " Go ", "SQL", "go", "", "SQL"}
	got := DedupeSkills(in)
	// Trimmed, case-sensitive compare: "Go" and "go" are distinct.
	want := []string{"Go", "SQL", "go"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
