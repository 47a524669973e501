package textutil

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	t.Run("splits on punctuation and folds case", func(t *testing.T) {
		actual := Tokenize("SKF-6205 Deep-Groove Bearing", 2)
		expected := []string{"skf", "6205", "deep", "groove", "bearing"}
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %v got %v", expected, actual)
		}
	})

	t.Run("drops short tokens", func(t *testing.T) {
		actual := Tokenize("a bc def", 3)
		expected := []string{"def"}
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %v got %v", expected, actual)
		}
	})
}

func TestDedupe(t *testing.T) {
	actual := Dedupe([]string{"valve", " valve", "", "pump", "valve"})
	expected := []string{"valve", "pump"}
	if !reflect.DeepEqual(actual, expected) {
		t.Fatalf("expected %v got %v", expected, actual)
	}
	if Dedupe(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}

func TestNormalizeStringMap(t *testing.T) {
	input := map[string]string{
		" Material ": " Steel ",
		"bore":       " 25mm",
		" ":          "ignored",
		"":           "ignored",
	}
	expected := map[string]string{
		"Material": "Steel",
		"bore":     "25mm",
	}
	if actual := NormalizeStringMap(input); !reflect.DeepEqual(actual, expected) {
		t.Fatalf("expected %#v got %#v", expected, actual)
	}
	if NormalizeStringMap(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}
