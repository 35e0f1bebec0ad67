package domain

import (
	"testing"
	"time"
)

func TestDevice_RefreshExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if !(&Device{}).RefreshExpired(now) {
		t.Error("no recorded expiry should count as expired")
	}

	past := now.Add(-time.Second)
	if !(&Device{RefreshTokenExpiresAt: &past}).RefreshExpired(now) {
		t.Error("past expiry should count as expired")
	}

	future := now.Add(time.Hour)
	if (&Device{RefreshTokenExpiresAt: &future}).RefreshExpired(now) {
		t.Error("future expiry should not count as expired")
	}

	// The boundary instant is still usable.
	exact := now
	if (&Device{RefreshTokenExpiresAt: &exact}).RefreshExpired(now) {
		t.Error("expiry exactly at now should not count as expired")
	}
}
