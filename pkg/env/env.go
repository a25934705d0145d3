package env

import (
	"os"
	"strings"
)

// Lookup returns the first non-blank value among keys.
func Lookup(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

// Get returns the value of key or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := Lookup(key); val != "" {
		return val
	}
	return fallback
}
