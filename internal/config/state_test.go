package config

import "testing"

func TestThresholdAndFeatureFlag(t *testing.T) {
	SetCurrent(nil)
	if got := GetThreshold("stake_max", 7); got != 7 {
		t.Fatalf("default threshold: got %d", got)
	}
	if GetFeatureFlag("betting_paused") {
		t.Fatal("flag should default to false")
	}

	SetCurrent(&Config{
		Thresholds:   map[string]int64{"stake_max": 500},
		FeatureFlags: map[string]bool{"betting_paused": true},
	})
	defer SetCurrent(nil)

	if got := GetThreshold("stake_max", 7); got != 500 {
		t.Fatalf("configured threshold: got %d", got)
	}
	if got := GetThreshold("unset_key", 9); got != 9 {
		t.Fatalf("missing key should fall back: got %d", got)
	}
	if !GetFeatureFlag("betting_paused") {
		t.Fatal("configured flag should be true")
	}
}
