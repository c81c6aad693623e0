package main

import "testing"

func TestVersionDefault(t *testing.T) {
	// Version may be replaced by build flags but is never empty.
	if Version == "" {
		t.Error("Version should not be empty")
	}
}
