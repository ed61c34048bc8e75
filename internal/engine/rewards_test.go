package engine_test

import (
	"testing"

	"kingdom/internal/config"
	"kingdom/internal/domain"
	"kingdom/internal/engine"
)

func strPtr(s string) *string { return &s }

func TestBuildSettlementVictory(t *testing.T) {
	bal := config.Default().Balance.Coup
	coup := domain.Coup{
		InitiatorID: "rebel",
		Attackers:   []string{"rebel", "ally"},
		Defenders:   []string{"loyalist"},
	}
	snapshot := map[string]domain.Actor{
		"rebel":    {ID: "rebel", Gold: 40},
		"ally":     {ID: "ally", Gold: 500},
		"loyalist": {ID: "loyalist", Gold: 300},
		"king":     {ID: "king", Gold: 9000},
	}
	out := engine.Outcome{AttackerVictory: true}
	s := engine.BuildSettlement(out, coup, snapshot, strPtr("king"), bal)

	if s.NewRulerID == nil || *s.NewRulerID != "rebel" {
		t.Fatalf("expected rebel to become ruler, got %v", s.NewRulerID)
	}
	if s.OldRulerID == nil || *s.OldRulerID != "king" {
		t.Fatalf("expected old ruler king, got %v", s.OldRulerID)
	}
	// Only the initiator is touched on victory.
	if len(s.Mutations) != 1 {
		t.Fatalf("expected 1 mutation, got %d: %+v", len(s.Mutations), s.Mutations)
	}
	m := s.Mutations[0]
	if m.ActorID != "rebel" || m.GoldDelta != 1000 || m.ReputationDelta != 50 || m.KingdomReputationDelta != 50 {
		t.Fatalf("unexpected initiator mutation: %+v", m)
	}
	if m.CoupsWonDelta != 1 || m.ResetPowers {
		t.Fatalf("unexpected initiator counters: %+v", m)
	}
}

func TestBuildSettlementDefeat(t *testing.T) {
	bal := config.Default().Balance.Coup
	coup := domain.Coup{
		InitiatorID: "rebel",
		Attackers:   []string{"rebel", "ally"},
		Defenders:   []string{"king", "loyalist"},
	}
	snapshot := map[string]domain.Actor{
		"rebel":    {ID: "rebel", Gold: 40},
		"ally":     {ID: "ally", Gold: 510},
		"king":     {ID: "king", Gold: 9000},
		"loyalist": {ID: "loyalist", Gold: 300},
	}
	s := engine.BuildSettlement(engine.Outcome{}, coup, snapshot, strPtr("king"), bal)

	if s.NewRulerID != nil {
		t.Fatalf("defeat must not change the ruler, got %v", *s.NewRulerID)
	}
	byActor := map[string]engine.Mutation{}
	for _, m := range s.Mutations {
		byActor[m.ActorID] = m
	}
	for _, id := range []string{"rebel", "ally"} {
		m := byActor[id]
		if m.GoldDelta != -snapshot[id].Gold {
			t.Fatalf("%s: expected gold stripped to zero, got %+v", id, m)
		}
		if m.ReputationDelta != -100 || m.KingdomReputationDelta != -100 {
			t.Fatalf("%s: expected -100 reputation, got %+v", id, m)
		}
		if !m.ResetPowers || m.CoupsFailedDelta != 1 || m.TimesExecutedDelta != 1 {
			t.Fatalf("%s: expected execution counters, got %+v", id, m)
		}
	}
	king := byActor["king"]
	if king.GoldDelta != 550 {
		t.Fatalf("expected ruler to seize 550 gold, got %+v", king)
	}
	if king.ReputationDelta != 50 || king.ResetPowers {
		t.Fatalf("unexpected ruler mutation: %+v", king)
	}
	loyalist := byActor["loyalist"]
	if loyalist.GoldDelta != 200 || loyalist.ReputationDelta != 30 || loyalist.KingdomReputationDelta != 30 {
		t.Fatalf("unexpected defender bounty: %+v", loyalist)
	}

	// Seized gold exactly balances attacker losses.
	total := 0
	for _, m := range s.Mutations {
		if m.ActorID == "loyalist" {
			continue // bounty is minted, not transferred
		}
		total += m.GoldDelta
	}
	if total != 0 {
		t.Fatalf("gold not conserved across attackers and ruler: %d", total)
	}
}

func TestBuildSettlementDefeatRulerAmongAttackers(t *testing.T) {
	bal := config.Default().Balance.Coup
	coup := domain.Coup{
		InitiatorID: "rebel",
		Attackers:   []string{"rebel", "king"},
		Defenders:   []string{"loyalist"},
	}
	snapshot := map[string]domain.Actor{
		"rebel":    {ID: "rebel", Gold: 50},
		"king":     {ID: "king", Gold: 5000},
		"loyalist": {ID: "loyalist", Gold: 0},
	}
	s := engine.BuildSettlement(engine.Outcome{}, coup, snapshot, strPtr("king"), bal)

	byActor := map[string]engine.Mutation{}
	for _, m := range s.Mutations {
		if _, dup := byActor[m.ActorID]; dup {
			t.Fatalf("actor %s has more than one mutation: %+v", m.ActorID, s.Mutations)
		}
		byActor[m.ActorID] = m
	}
	// The king is stripped like any attacker, then seizes the full pot,
	// netting only the other attackers' gold.
	king := byActor["king"]
	if king.GoldDelta != 50 {
		t.Fatalf("expected king to net 50 gold, got %+v", king)
	}
	if !king.ResetPowers || king.CoupsFailedDelta != 1 || king.TimesExecutedDelta != 1 {
		t.Fatalf("king must still be executed: %+v", king)
	}
	if king.ReputationDelta != -100+50 || king.KingdomReputationDelta != -100+50 {
		t.Fatalf("unexpected king reputation: %+v", king)
	}

	total := 0
	for _, m := range s.Mutations {
		if m.ActorID == "loyalist" {
			continue // bounty is minted, not transferred
		}
		total += m.GoldDelta
	}
	if total != 0 {
		t.Fatalf("gold not conserved when the ruler attacks: %d", total)
	}
}

func TestBuildSettlementDefeatNoRuler(t *testing.T) {
	bal := config.Default().Balance.Coup
	coup := domain.Coup{
		InitiatorID: "rebel",
		Attackers:   []string{"rebel"},
		Defenders:   []string{"loyalist"},
	}
	snapshot := map[string]domain.Actor{
		"rebel":    {ID: "rebel", Gold: 75},
		"loyalist": {ID: "loyalist", Gold: 10},
	}
	s := engine.BuildSettlement(engine.Outcome{}, coup, snapshot, nil, bal)
	for _, m := range s.Mutations {
		if m.ActorID == "rebel" && m.GoldDelta != -75 {
			t.Fatalf("expected attacker stripped even without a ruler, got %+v", m)
		}
	}
	// Defender bounty still applies.
	found := false
	for _, m := range s.Mutations {
		if m.ActorID == "loyalist" {
			found = true
			if m.GoldDelta != 200 {
				t.Fatalf("unexpected defender mutation: %+v", m)
			}
		}
	}
	if !found {
		t.Fatalf("missing defender mutation: %+v", s.Mutations)
	}
}
