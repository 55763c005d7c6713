package amount

import (
	"math/big"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0", "0", true},
		{"1500", "1500", true},
		{"", "0", true},
		{"100000000000000000000000000000000000000", "100000000000000000000000000000000000000", true},
		{"007", "7", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1.5", "", false},
		{"1e5", "", false},
		{"abc", "", false},
		{" 1", "", false},
		{"1 ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got.String() != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	if Format(nil) != "0" {
		t.Error("Format(nil) should be 0")
	}
	if Format(big.NewInt(1500)) != "1500" {
		t.Error("Format(1500) should be 1500")
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("100") {
		t.Error("Expected 100 valid")
	}
	if IsValid("-100") {
		t.Error("Expected -100 invalid")
	}
}
