package agent

import "testing"

func TestCompactionThresholdDefaults(t *testing.T) {
	// claude-sonnet-4-5 has a 200k input limit.
	if got := CompactionThreshold("", "claude-sonnet-4-5"); got != 170_000 {
		t.Errorf("known model default = %d, want 170000", got)
	}
	if got := CompactionThreshold("", "totally-unknown-model"); got != 170_000 {
		t.Errorf("unknown model default = %d, want 170000", got)
	}
}

func TestCompactionThresholdFractionBoundary(t *testing.T) {
	// An explicit 0.85 must reproduce the default exactly, with and
	// without a model profile.
	if got := CompactionThreshold("0.85", "claude-sonnet-4-5"); got != 170_000 {
		t.Errorf("explicit 0.85 with profile = %d, want 170000", got)
	}
	if got := CompactionThreshold("0.85", "totally-unknown-model"); got != 170_000 {
		t.Errorf("explicit 0.85 without profile = %d, want 170000", got)
	}
}

func TestCompactionThresholdFraction(t *testing.T) {
	if got := CompactionThreshold("0.5", "claude-sonnet-4-5"); got != 100_000 {
		t.Errorf("0.5 of 200k = %d, want 100000", got)
	}
	if got := CompactionThreshold("0.5", "totally-unknown-model"); got != 100_000 {
		t.Errorf("0.5 scaled fallback = %d, want 100000", got)
	}
}

func TestCompactionThresholdAbsolute(t *testing.T) {
	if got := CompactionThreshold("50000", "claude-sonnet-4-5"); got != 50_000 {
		t.Errorf("absolute = %d, want 50000", got)
	}
}

func TestCompactionThresholdUnparsable(t *testing.T) {
	if got := CompactionThreshold("lots", "claude-sonnet-4-5"); got != 170_000 {
		t.Errorf("unparsable with profile = %d, want 170000", got)
	}
	if got := CompactionThreshold("-1", "totally-unknown-model"); got != 170_000 {
		t.Errorf("negative = %d, want 170000", got)
	}
}

func TestTokenTrackerAccumulation(t *testing.T) {
	tr := NewTokenTracker()
	tr.Record(1000, 200)
	tr.Record(1500, 300)

	if got := tr.CurrentContext(); got != 1800 {
		t.Errorf("CurrentContext = %d, want 1800 (overwritten, not summed)", got)
	}
	if got := tr.TotalSessionTokens(); got != 3000 {
		t.Errorf("TotalSessionTokens = %d, want 3000", got)
	}
	if got := tr.LastOutput(); got != 300 {
		t.Errorf("LastOutput = %d, want 300", got)
	}

	tr.Reset()
	if tr.CurrentContext() != 0 || tr.TotalSessionTokens() != 0 || tr.LastOutput() != 0 {
		t.Error("Reset did not zero all counters")
	}
}

func TestTurnUsageTracksMaxima(t *testing.T) {
	// Providers may resend cumulative totals per chunk; the turn's value
	// is the maximum observed, never a sum.
	var u TurnUsage
	u.Observe(1000, 10)
	u.Observe(1000, 50)
	u.Observe(0, 0)

	if u.Input != 1000 {
		t.Errorf("Input = %d, want 1000", u.Input)
	}
	if u.Output != 50 {
		t.Errorf("Output = %d, want 50", u.Output)
	}
}
