package scheduler

import "strings"

// parkedMarkers identify registrar parking pages and domain-sale lots.
// Matched case-insensitively against the raw home-page body.
var parkedMarkers = []string{
	"this domain is for sale",
	"domain is parked",
	"parked free, courtesy of",
	"buy this domain",
	"diese domain steht zum verkauf",
	"domain kaufen",
	"ce domaine est à vendre",
	"sedoparking",
	"parkingcrew",
	"domain has expired",
}

func looksParked(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range parkedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
