package engine

import "kingdom/internal/domain"

// Outcome is the deterministic result of a coup battle.
type Outcome struct {
	AttackerVictory  bool    `json:"attacker_victory"`
	AttackerStrength int     `json:"attacker_strength"`
	DefenderStrength int     `json:"defender_strength"`
	RequiredStrength float64 `json:"required_strength"`
}

// ResolveBattle computes the outcome from a snapshot of both sides.
// Attackers must strictly exceed defender strength scaled by the
// defense multiplier; a tie goes to the defenders. Internal rebellions
// get no fortification term, unlike external invasions.
func ResolveBattle(attackers, defenders []domain.Actor, defenseMultiplier float64) Outcome {
	attackerStrength := 0
	for _, a := range attackers {
		attackerStrength += a.AttackPower
	}
	defenderStrength := 0
	for _, d := range defenders {
		defenderStrength += d.DefensePower
	}
	required := float64(defenderStrength) * defenseMultiplier
	return Outcome{
		AttackerVictory:  float64(attackerStrength) > required,
		AttackerStrength: attackerStrength,
		DefenderStrength: defenderStrength,
		RequiredStrength: required,
	}
}
