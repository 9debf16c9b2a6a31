package normalize

import (
	"reflect"
	"testing"
)

func TestTag(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"art", "art"},
		{"Art", "art"},
		{"art ", "art"},
		{"  Cat  Tag ", "cat tag"},
		{"cat\ttag", "cat tag"},
		{"cat\n\n tag", "cat tag"},
		{"STREET   PHOTOGRAPHY", "street photography"},
		{"", ""},
		{"   ", ""},
		{"Café", "café"},
		{"null\x00byte", "nullbyte"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := Tag(tt.input)
			if result != tt.expected {
				t.Errorf("Tag(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestTag_Idempotent(t *testing.T) {
	inputs := []string{"  Cat  Tag ", "ÅNGSTRÖM", "a b", "x", "", "Café Noir"}
	for _, in := range inputs {
		once := Tag(in)
		if twice := Tag(once); twice != once {
			t.Errorf("Tag not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestTag_CaseAndSpaceInsensitive(t *testing.T) {
	if Tag("  Cat  Tag ") != Tag("cat tag") {
		t.Errorf("expected %q and %q to normalize equally", "  Cat  Tag ", "cat tag")
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil", nil, []string{}},
		{"dedupe after normalization", []string{"Art", "art ", "ART"}, []string{"art"}},
		{"keeps order", []string{"b", "A", "c"}, []string{"b", "a", "c"}},
		{"drops empties", []string{"", "  ", "x"}, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Tags(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("Tags(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Studio   Ghibli ", "Studio Ghibli"},
		{"Ansel Adams", "Ansel Adams"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := Name(tt.input); result != tt.expected {
				t.Errorf("Name(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSplitCreators(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"Ansel Adams", []string{"Ansel Adams"}},
		{"Ansel Adams, Dorothea Lange", []string{"Ansel Adams", "Dorothea Lange"}},
		{" a ,, b ,", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := SplitCreators(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("SplitCreators(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
