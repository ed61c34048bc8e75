package server

import (
	"encoding/json"

	"kingdom/internal/domain"
	"kingdom/internal/engine"
)

// Request payloads

type CreateActorRequest struct {
	ID           *string `json:"id,omitempty"`
	Name         string  `json:"name"`
	Gold         int     `json:"gold,omitempty"`
	Reputation   int     `json:"reputation,omitempty"`
	AttackPower  int     `json:"attack_power,omitempty"`
	DefensePower int     `json:"defense_power,omitempty"`
}

type CheckInRequest struct {
	KingdomID string `json:"kingdom_id"`
}

type CreateKingdomRequest struct {
	ID                 *string `json:"id,omitempty"`
	Name               string  `json:"name"`
	RulerID            *string `json:"ruler_id,omitempty"`
	TreasuryGold       int     `json:"treasury_gold,omitempty"`
	FortificationLevel int     `json:"fortification_level,omitempty"`
}

type JoinCoupRequest struct {
	Side string `json:"side" enum:"attackers,defenders"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type ActorResponse struct {
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

type KingdomResponse struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	RulerID            *string `json:"ruler_id,omitempty"`
	TreasuryGold       int     `json:"treasury_gold"`
	FortificationLevel int     `json:"fortification_level"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
}

type CoupResponse struct {
	ID          string   `json:"id"`
	KingdomID   string   `json:"kingdom_id"`
	InitiatorID string   `json:"initiator_id"`
	Phase       string   `json:"phase" enum:"voting,resolved"`
	StartedAt   string   `json:"started_at" format:"date-time"`
	EndsAt      string   `json:"ends_at" format:"date-time"`
	Attackers   []string `json:"attackers"`
	Defenders   []string `json:"defenders"`

	AttackerVictory  *bool    `json:"attacker_victory,omitempty"`
	AttackerStrength *int     `json:"attacker_strength,omitempty"`
	DefenderStrength *int     `json:"defender_strength,omitempty"`
	RequiredStrength *float64 `json:"required_strength,omitempty"`
	ResolvedAt       *string  `json:"resolved_at,omitempty" format:"date-time"`
}

type ResolutionResponse struct {
	Coup         CoupResponse               `json:"coup"`
	Outcome      engine.Outcome             `json:"outcome"`
	OldRulerID   *string                    `json:"old_ruler_id,omitempty"`
	NewRulerID   *string                    `json:"new_ruler_id,omitempty"`
	Participants []engine.ParticipantResult `json:"participants"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	KingdomID  string         `json:"kingdom_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func actorResponse(a domain.Actor) ActorResponse {
	return ActorResponse(a)
}

func kingdomResponse(k domain.Kingdom) KingdomResponse {
	return KingdomResponse(k)
}

func coupResponse(c domain.Coup) CoupResponse {
	return CoupResponse{
		ID:               c.ID,
		KingdomID:        c.KingdomID,
		InitiatorID:      c.InitiatorID,
		Phase:            string(c.Phase),
		StartedAt:        c.StartedAt,
		EndsAt:           c.EndsAt,
		Attackers:        nonNilSlice(c.Attackers),
		Defenders:        nonNilSlice(c.Defenders),
		AttackerVictory:  c.AttackerVictory,
		AttackerStrength: c.AttackerStrength,
		DefenderStrength: c.DefenderStrength,
		RequiredStrength: c.RequiredStrength,
		ResolvedAt:       c.ResolvedAt,
	}
}

func resolutionResponse(res engine.ResolutionResult) ResolutionResponse {
	return ResolutionResponse{
		Coup:         coupResponse(res.Coup),
		Outcome:      res.Outcome,
		OldRulerID:   res.OldRulerID,
		NewRulerID:   res.NewRulerID,
		Participants: res.Participants,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		KingdomID:  e.KingdomID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
