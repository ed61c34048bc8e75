package config

import "testing"

func TestDefaultMatchesReferenceBalance(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	b := cfg.Balance.Coup
	if b.InitiationCost != 50 || b.MinReputation != 300 {
		t.Fatalf("unexpected initiation gates: %+v", b)
	}
	if b.VotingWindowMinutes != 120 || b.CooldownHours != 24 {
		t.Fatalf("unexpected timings: %+v", b)
	}
	if b.DefenseMultiplier != 1.25 || b.PowerFloor != 1 {
		t.Fatalf("unexpected combat values: %+v", b)
	}
	if b.Victory.InitiatorGold != 1000 || b.Victory.InitiatorReputation != 50 {
		t.Fatalf("unexpected victory table: %+v", b.Victory)
	}
	if b.Defeat.AttackerReputationLoss != 100 || b.Defeat.RulerReputation != 50 ||
		b.Defeat.DefenderGold != 200 || b.Defeat.DefenderReputation != 30 {
		t.Fatalf("unexpected defeat table: %+v", b.Defeat)
	}
}

func TestFromYAMLRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero window", "balance:\n  coup:\n    voting_window_minutes: 0\n    defense_multiplier: 1.25\n    power_floor: 1\n"},
		{"multiplier below one", "balance:\n  coup:\n    voting_window_minutes: 120\n    defense_multiplier: 0.5\n    power_floor: 1\n"},
		{"zero power floor", "balance:\n  coup:\n    voting_window_minutes: 120\n    defense_multiplier: 1.25\n    power_floor: 0\n"},
		{"negative cost", "balance:\n  coup:\n    initiation_cost: -1\n    voting_window_minutes: 120\n    defense_multiplier: 1.25\n    power_floor: 1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromYAML([]byte(tc.yaml)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	if err != nil {
		t.Fatalf("generated template invalid: %v", err)
	}
	if cfg.Balance.Coup.InitiationCost != Default().Balance.Coup.InitiationCost {
		t.Fatalf("template and defaults diverge")
	}
}
