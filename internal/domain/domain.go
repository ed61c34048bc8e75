package domain

// CoupPhase is the closed set of coup lifecycle states.
type CoupPhase string

const (
	PhaseVoting   CoupPhase = "voting"
	PhaseResolved CoupPhase = "resolved"
)

// Valid reports whether p is a known phase.
func (p CoupPhase) Valid() bool {
	return p == PhaseVoting || p == PhaseResolved
}

// CoupSide identifies which side of a coup an actor joined.
type CoupSide string

const (
	SideAttackers CoupSide = "attackers"
	SideDefenders CoupSide = "defenders"
)

// Valid reports whether s is a known side.
func (s CoupSide) Valid() bool {
	return s == SideAttackers || s == SideDefenders
}

type Actor struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Gold             int     `json:"gold"`
	Reputation       int     `json:"reputation"`
	AttackPower      int     `json:"attack_power"`
	DefensePower     int     `json:"defense_power"`
	CheckedInKingdom *string `json:"checked_in_kingdom,omitempty"`
	LastCoupAttempt  *string `json:"last_coup_attempt,omitempty" format:"date-time"`
	CoupsWon         int     `json:"coups_won"`
	CoupsFailed      int     `json:"coups_failed"`
	TimesExecuted    int     `json:"times_executed"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

type Kingdom struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	RulerID            *string `json:"ruler_id,omitempty"`
	TreasuryGold       int     `json:"treasury_gold"`
	FortificationLevel int     `json:"fortification_level"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
}

// Coup is one rebellion attempt against a kingdom's ruler. Resolution
// fields stay nil while the coup is in the voting phase; once resolved
// the record is immutable and kept as history.
type Coup struct {
	ID          string    `json:"id"`
	KingdomID   string    `json:"kingdom_id"`
	InitiatorID string    `json:"initiator_id"`
	Phase       CoupPhase `json:"phase" enum:"voting,resolved"`
	StartedAt   string    `json:"started_at" format:"date-time"`
	EndsAt      string    `json:"ends_at" format:"date-time"`

	Attackers []string `json:"attackers"`
	Defenders []string `json:"defenders"`

	AttackerVictory  *bool    `json:"attacker_victory,omitempty"`
	AttackerStrength *int     `json:"attacker_strength,omitempty"`
	DefenderStrength *int     `json:"defender_strength,omitempty"`
	RequiredStrength *float64 `json:"required_strength,omitempty"`
	ResolvedAt       *string  `json:"resolved_at,omitempty" format:"date-time"`
}

// OnSide returns the side actorID joined, or "" for non-participants.
func (c Coup) OnSide(actorID string) CoupSide {
	for _, id := range c.Attackers {
		if id == actorID {
			return SideAttackers
		}
	}
	for _, id := range c.Defenders {
		if id == actorID {
			return SideDefenders
		}
	}
	return ""
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	KingdomID  string `json:"kingdom_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
