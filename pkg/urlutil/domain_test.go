package urlutil

import "testing"

func TestRegistrableLabel(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"www.example.de", "example"},
		{"example.de", "example"},
		{"shop.example.co.uk", "example"},
		{"example.co.uk", "example"},
		{"example.com", "example"},
	}
	for _, tt := range tests {
		if got := RegistrableLabel(tt.host); got != tt.want {
			t.Errorf("RegistrableLabel(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestCcTLD(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"example.de", "de"},
		{"www.example.co.uk", "uk"},
		{"example.fr", "fr"},
	}
	for _, tt := range tests {
		if got := CcTLD(tt.host); got != tt.want {
			t.Errorf("CcTLD(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestSameRegistrableDomain(t *testing.T) {
	if !SameRegistrableDomain("www.example.de", "example.de") {
		t.Error("expected www.example.de and example.de to match")
	}
	if SameRegistrableDomain("example.de", "other.de") {
		t.Error("expected different hosts not to match")
	}
}
