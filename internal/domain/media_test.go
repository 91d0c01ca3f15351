package domain

import "testing"

func TestHasDuration(t *testing.T) {
	var none *ResolvedMedia
	if none.HasDuration() {
		t.Fatal("nil media has no duration")
	}
	if (&ResolvedMedia{}).HasDuration() {
		t.Fatal("zero duration means unknown")
	}
	if !(&ResolvedMedia{Duration: 61.5}).HasDuration() {
		t.Fatal("positive duration should be reported")
	}
}
