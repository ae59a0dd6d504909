package fieldmap_test

import (
	"testing"

	"github.com/firesense/fire-alert-service/tools/fieldmap"
)

func TestCanonicalLayout(t *testing.T) {
	// Temperature-first order; changing it breaks every deployed board.
	positions := map[string]int{
		"temperature": fieldmap.Temperature,
		"humidity":    fieldmap.Humidity,
		"flame":       fieldmap.Flame,
		"gas":         fieldmap.Gas,
		"pir":         fieldmap.PIR,
	}
	expected := map[string]int{
		"temperature": 1,
		"humidity":    2,
		"flame":       3,
		"gas":         4,
		"pir":         5,
	}
	for name, pos := range positions {
		if pos != expected[name] {
			t.Errorf("Expected %s at position %d, got %d", name, expected[name], pos)
		}
	}
}

func TestKey(t *testing.T) {
	if got := fieldmap.Key(fieldmap.Flame); got != "field3" {
		t.Errorf("Expected field3, got %q", got)
	}
	if got := fieldmap.Key(fieldmap.PIR); got != "field5" {
		t.Errorf("Expected field5, got %q", got)
	}
}
