package engine

import (
	"kingdom/internal/config"
	"kingdom/internal/domain"
)

// Mutation is one actor's share of a resolution. Deltas are computed
// from the pre-resolution snapshot and applied in a separate step, so
// no mutation can observe another mutation's effect.
type Mutation struct {
	ActorID                string `json:"actor_id"`
	GoldDelta              int    `json:"gold_delta"`
	ReputationDelta        int    `json:"reputation_delta"`
	KingdomReputationDelta int    `json:"kingdom_reputation_delta"`
	ResetPowers            bool   `json:"reset_powers,omitempty"`
	CoupsWonDelta          int    `json:"-"`
	CoupsFailedDelta       int    `json:"-"`
	TimesExecutedDelta     int    `json:"-"`
}

// Settlement is the full consequence set of one resolution: per-actor
// mutations plus the ruler reassignment instruction.
type Settlement struct {
	Mutations  []Mutation
	OldRulerID *string
	NewRulerID *string
}

// BuildSettlement turns an outcome into mutations. Pure: it reads only
// the snapshot passed in, never the live records.
//
// Victory pays the initiator alone; supporters on the winning side
// receive nothing, and the deposed ruler only loses the title. On
// defeat every attacker is executed and stripped to zero gold, the sum
// goes to the ruler, and surviving defenders collect a bounty.
//
// Each actor gets at most one mutation. A ruler who fought on the
// attacker side takes the execution and the seizure as a single merged
// entry, so the applied deltas stay safe to base on the snapshot.
func BuildSettlement(out Outcome, coup domain.Coup, snapshot map[string]domain.Actor, rulerID *string, bal config.CoupBalance) Settlement {
	s := Settlement{OldRulerID: rulerID}
	index := map[string]int{}
	add := func(m Mutation) {
		if i, ok := index[m.ActorID]; ok {
			cur := &s.Mutations[i]
			cur.GoldDelta += m.GoldDelta
			cur.ReputationDelta += m.ReputationDelta
			cur.KingdomReputationDelta += m.KingdomReputationDelta
			cur.ResetPowers = cur.ResetPowers || m.ResetPowers
			cur.CoupsWonDelta += m.CoupsWonDelta
			cur.CoupsFailedDelta += m.CoupsFailedDelta
			cur.TimesExecutedDelta += m.TimesExecutedDelta
			return
		}
		index[m.ActorID] = len(s.Mutations)
		s.Mutations = append(s.Mutations, m)
	}

	if out.AttackerVictory {
		initiator := coup.InitiatorID
		s.NewRulerID = &initiator
		add(Mutation{
			ActorID:                initiator,
			GoldDelta:              bal.Victory.InitiatorGold,
			ReputationDelta:        bal.Victory.InitiatorReputation,
			KingdomReputationDelta: bal.Victory.InitiatorReputation,
			CoupsWonDelta:          1,
		})
		return s
	}

	seized := 0
	for _, id := range coup.Attackers {
		a := snapshot[id]
		seized += a.Gold
		add(Mutation{
			ActorID:                id,
			GoldDelta:              -a.Gold,
			ReputationDelta:        -bal.Defeat.AttackerReputationLoss,
			KingdomReputationDelta: -bal.Defeat.AttackerReputationLoss,
			ResetPowers:            true,
			CoupsFailedDelta:       1,
			TimesExecutedDelta:     1,
		})
	}
	if rulerID != nil {
		add(Mutation{
			ActorID:                *rulerID,
			GoldDelta:              seized,
			ReputationDelta:        bal.Defeat.RulerReputation,
			KingdomReputationDelta: bal.Defeat.RulerReputation,
		})
	}
	for _, id := range coup.Defenders {
		if rulerID != nil && id == *rulerID {
			continue
		}
		add(Mutation{
			ActorID:                id,
			GoldDelta:              bal.Defeat.DefenderGold,
			ReputationDelta:        bal.Defeat.DefenderReputation,
			KingdomReputationDelta: bal.Defeat.DefenderReputation,
		})
	}
	return s
}
