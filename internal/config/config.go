package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models kingdom.yml. The balance section carries every tunable
// the coup engine reads, so a deployment can rebalance without a code
// change; the defaults match the reference game.
type Config struct {
	Balance struct {
		Coup CoupBalance `yaml:"coup"`
	} `yaml:"balance"`
}

// CoupBalance holds the coup lifecycle constants.
type CoupBalance struct {
	InitiationCost      int     `yaml:"initiation_cost"`
	MinReputation       int     `yaml:"min_reputation"`
	VotingWindowMinutes int     `yaml:"voting_window_minutes"`
	CooldownHours       int     `yaml:"cooldown_hours"`
	DefenseMultiplier   float64 `yaml:"defense_multiplier"`
	PowerFloor          int     `yaml:"power_floor"`
	Victory             struct {
		InitiatorGold       int `yaml:"initiator_gold"`
		InitiatorReputation int `yaml:"initiator_reputation"`
	} `yaml:"victory"`
	Defeat struct {
		AttackerReputationLoss int `yaml:"attacker_reputation_loss"`
		RulerReputation        int `yaml:"ruler_reputation"`
		DefenderGold           int `yaml:"defender_gold"`
		DefenderReputation     int `yaml:"defender_reputation"`
	} `yaml:"defeat"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	b := c.Balance.Coup
	if b.InitiationCost < 0 {
		return fmt.Errorf("balance.coup.initiation_cost must be >= 0")
	}
	if b.MinReputation < 0 {
		return fmt.Errorf("balance.coup.min_reputation must be >= 0")
	}
	if b.VotingWindowMinutes <= 0 {
		return fmt.Errorf("balance.coup.voting_window_minutes must be > 0")
	}
	if b.CooldownHours < 0 {
		return fmt.Errorf("balance.coup.cooldown_hours must be >= 0")
	}
	if b.DefenseMultiplier < 1 {
		return fmt.Errorf("balance.coup.defense_multiplier must be >= 1")
	}
	if b.PowerFloor < 1 {
		return fmt.Errorf("balance.coup.power_floor must be >= 1")
	}
	if b.Victory.InitiatorGold < 0 || b.Victory.InitiatorReputation < 0 {
		return fmt.Errorf("balance.coup.victory rewards must be >= 0")
	}
	if b.Defeat.AttackerReputationLoss < 0 || b.Defeat.RulerReputation < 0 ||
		b.Defeat.DefenderGold < 0 || b.Defeat.DefenderReputation < 0 {
		return fmt.Errorf("balance.coup.defeat values must be >= 0")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "kingdom.yml")
}

// Load reads config from the workspace, falling back to defaults when
// kingdom.yml does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the reference balance values.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateDefault returns default config YAML for kd init-style setup.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `balance:
  coup:
    initiation_cost: 50
    min_reputation: 300
    voting_window_minutes: 120
    cooldown_hours: 24
    defense_multiplier: 1.25
    power_floor: 1

    victory:
      initiator_gold: 1000
      initiator_reputation: 50

    defeat:
      attacker_reputation_loss: 100
      ruler_reputation: 50
      defender_gold: 200
      defender_reputation: 30
`
