package engine

import (
	"time"

	"kingdom/internal/config"
	"kingdom/internal/domain"
)

// checkInitiate validates a coup initiation. Conditions are evaluated
// in a fixed order and the first unmet one is reported, so callers see
// a stable error kind for a given state.
func checkInitiate(actor domain.Actor, kingdom domain.Kingdom, kingdomRep int, hasActive bool, now time.Time, bal config.CoupBalance) error {
	if kingdom.RulerID == nil {
		return ErrKingdomUnclaimed
	}
	if *kingdom.RulerID == actor.ID {
		return ErrAlreadyRuler
	}
	if kingdomRep < bal.MinReputation {
		return ErrInsufficientReputation
	}
	if actor.Gold < bal.InitiationCost {
		return ErrInsufficientGold
	}
	if actor.CheckedInKingdom == nil || *actor.CheckedInKingdom != kingdom.ID {
		return ErrNotCheckedIn
	}
	if hasActive {
		return ErrContestAlreadyActive
	}
	if actor.LastCoupAttempt != nil {
		last, err := time.Parse(time.RFC3339, *actor.LastCoupAttempt)
		if err == nil && now.Sub(last) < time.Duration(bal.CooldownHours)*time.Hour {
			return ErrCooldownActive
		}
	}
	return nil
}

// checkJoin validates joining a side of an open coup. Joining has no
// gold cost and no reputation floor.
func checkJoin(coup domain.Coup, actor domain.Actor, side domain.CoupSide, now time.Time) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	if coup.Phase != domain.PhaseVoting {
		return ErrVotingClosed
	}
	ends, err := time.Parse(time.RFC3339, coup.EndsAt)
	if err != nil || !now.Before(ends) {
		return ErrVotingClosed
	}
	if actor.CheckedInKingdom == nil || *actor.CheckedInKingdom != coup.KingdomID {
		return ErrNotCheckedIn
	}
	if coup.OnSide(actor.ID) != "" {
		return ErrAlreadyJoined
	}
	return nil
}

// checkResolvable validates the resolve transition precondition.
func checkResolvable(coup domain.Coup, now time.Time) error {
	if coup.Phase == domain.PhaseResolved {
		return ErrAlreadyResolved
	}
	ends, err := time.Parse(time.RFC3339, coup.EndsAt)
	if err == nil && now.Before(ends) {
		return ErrNotYetResolvable
	}
	return nil
}
