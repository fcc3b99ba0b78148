package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a crafted value cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPKey builds the bucket key for one client IP on one route.
func NewIPKey(ip, route string) string {
	return "ip:" + SanitizeKeySegment(ip) + ":" + SanitizeKeySegment(route)
}
