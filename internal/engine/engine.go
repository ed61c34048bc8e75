package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kingdom/internal/config"
	"kingdom/internal/domain"
	"kingdom/internal/events"
	"kingdom/internal/repo"
)

// Engine orchestrates the coup lifecycle over the persisted actor,
// kingdom, and coup records. All writes happen inside transactions
// with an audit event appended; calls touching the same kingdom are
// serialized through a per-kingdom lock, calls on different kingdoms
// run independently.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time

	locks *kingdomLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
		locks:  newKingdomLocks(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) balance() config.CoupBalance {
	return e.Config.Balance.Coup
}

// kingdomLocks hands out one mutex per kingdom id. Engine is copied by
// value, so the map lives behind a shared pointer.
type kingdomLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKingdomLocks() *kingdomLocks {
	return &kingdomLocks{locks: map[string]*sync.Mutex{}}
}

func (k *kingdomLocks) lock(kingdomID string) func() {
	k.mu.Lock()
	m, ok := k.locks[kingdomID]
	if !ok {
		m = &sync.Mutex{}
		k.locks[kingdomID] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// ActorCreateOptions are parameters for creating an actor record.
type ActorCreateOptions struct {
	ID           string
	Name         string
	Gold         int
	Reputation   int
	AttackPower  int
	DefensePower int
}

func (e Engine) CreateActor(ctx context.Context, opts ActorCreateOptions) (domain.Actor, error) {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.AttackPower < 1 {
		opts.AttackPower = 1
	}
	if opts.DefensePower < 1 {
		opts.DefensePower = 1
	}
	if opts.Gold < 0 {
		return domain.Actor{}, errors.New("gold must be >= 0")
	}
	a := domain.Actor{
		ID:           opts.ID,
		Name:         opts.Name,
		Gold:         opts.Gold,
		Reputation:   opts.Reputation,
		AttackPower:  opts.AttackPower,
		DefensePower: opts.DefensePower,
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertActor(ctx, a); err != nil {
		return domain.Actor{}, fmt.Errorf("insert actor: %w", err)
	}
	return a, nil
}

// KingdomCreateOptions are parameters for creating a kingdom record.
type KingdomCreateOptions struct {
	ID                 string
	Name               string
	RulerID            string
	TreasuryGold       int
	FortificationLevel int
}

func (e Engine) CreateKingdom(ctx context.Context, opts KingdomCreateOptions) (domain.Kingdom, error) {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	k := domain.Kingdom{
		ID:                 opts.ID,
		Name:               opts.Name,
		TreasuryGold:       opts.TreasuryGold,
		FortificationLevel: opts.FortificationLevel,
		CreatedAt:          e.now().UTC().Format(time.RFC3339),
	}
	if opts.RulerID != "" {
		if _, err := e.Repo.GetActor(ctx, opts.RulerID); err != nil {
			return domain.Kingdom{}, err
		}
		k.RulerID = &opts.RulerID
	}
	if err := e.Repo.InsertKingdom(ctx, k); err != nil {
		return domain.Kingdom{}, fmt.Errorf("insert kingdom: %w", err)
	}
	return k, nil
}

// ClaimKingdom sets the ruler of an unclaimed kingdom.
func (e Engine) ClaimKingdom(ctx context.Context, kingdomID, actorID string) (domain.Kingdom, error) {
	unlock := e.locks.lock(kingdomID)
	defer unlock()

	k, err := e.Repo.GetKingdom(ctx, kingdomID)
	if err != nil {
		return k, err
	}
	if k.RulerID != nil {
		return k, errors.New("kingdom already has a ruler")
	}
	if _, err := e.Repo.GetActor(ctx, actorID); err != nil {
		return k, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return k, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetRulerTx(ctx, tx, kingdomID, &actorID); err != nil {
		return k, err
	}
	if err := e.Events.Append(ctx, tx, "kingdom.claimed", kingdomID, "kingdom", kingdomID, actorID, events.EventPayload{"ruler_id": actorID}); err != nil {
		return k, err
	}
	if err := tx.Commit(); err != nil {
		return k, err
	}
	k.RulerID = &actorID
	return k, nil
}

// CheckIn records the actor's presence in a kingdom; the eligibility
// guard treats it as the external "checked into kingdom K" signal.
func (e Engine) CheckIn(ctx context.Context, actorID, kingdomID string) (domain.Actor, error) {
	if _, err := e.Repo.GetKingdom(ctx, kingdomID); err != nil {
		return domain.Actor{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Actor{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetCheckIn(ctx, tx, actorID, kingdomID); err != nil {
		return domain.Actor{}, err
	}
	if err := e.Events.Append(ctx, tx, "actor.checked_in", kingdomID, "actor", actorID, actorID, events.EventPayload{"kingdom_id": kingdomID}); err != nil {
		return domain.Actor{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Actor{}, err
	}
	return e.Repo.GetActor(ctx, actorID)
}

// InitiateCoup starts a rebellion against the kingdom's ruler. The
// initiation cost is debited in the same transaction that creates the
// coup, so a failed creation never charges.
func (e Engine) InitiateCoup(ctx context.Context, actorID, kingdomID string) (domain.Coup, error) {
	unlock := e.locks.lock(kingdomID)
	defer unlock()

	actor, err := e.Repo.GetActor(ctx, actorID)
	if err != nil {
		return domain.Coup{}, err
	}
	kingdom, err := e.Repo.GetKingdom(ctx, kingdomID)
	if err != nil {
		return domain.Coup{}, err
	}
	kingdomRep, err := e.Repo.KingdomReputation(ctx, actorID, kingdomID)
	if err != nil {
		return domain.Coup{}, err
	}
	hasActive := true
	if _, err := e.Repo.ActiveCoupForKingdom(ctx, kingdomID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return domain.Coup{}, err
		}
		hasActive = false
	}
	now := e.now().UTC()
	if err := checkInitiate(actor, kingdom, kingdomRep, hasActive, now, e.balance()); err != nil {
		return domain.Coup{}, err
	}

	bal := e.balance()
	nowStr := now.Format(time.RFC3339)
	c := domain.Coup{
		ID:          uuid.New().String(),
		KingdomID:   kingdomID,
		InitiatorID: actorID,
		Phase:       domain.PhaseVoting,
		StartedAt:   nowStr,
		EndsAt:      now.Add(time.Duration(bal.VotingWindowMinutes) * time.Minute).Format(time.RFC3339),
		Attackers:   []string{actorID},
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Coup{}, err
	}
	defer tx.Rollback()

	actor.Gold -= bal.InitiationCost
	actor.LastCoupAttempt = &nowStr
	if err := e.Repo.UpdateActorTx(ctx, tx, actor); err != nil {
		return domain.Coup{}, err
	}
	if err := e.Repo.InsertCoupTx(ctx, tx, c); err != nil {
		return domain.Coup{}, err
	}
	if err := e.Repo.AddCoupMemberTx(ctx, tx, c.ID, actorID, domain.SideAttackers, nowStr); err != nil {
		return domain.Coup{}, err
	}
	if err := e.Events.Append(ctx, tx, "coup.initiated", kingdomID, "coup", c.ID, actorID, events.EventPayload{
		"cost_paid": bal.InitiationCost,
		"ends_at":   c.EndsAt,
	}); err != nil {
		return domain.Coup{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Coup{}, err
	}
	return c, nil
}

// JoinCoup adds an actor to one side of an open coup. Joining costs
// nothing; only initiating is gated.
func (e Engine) JoinCoup(ctx context.Context, coupID, actorID string, side domain.CoupSide) (domain.Coup, error) {
	c, err := e.getCoup(ctx, coupID)
	if err != nil {
		return domain.Coup{}, err
	}

	unlock := e.locks.lock(c.KingdomID)
	defer unlock()

	// Reload under the lock; a concurrent join or resolve may have
	// advanced the record.
	c, err = e.getCoup(ctx, coupID)
	if err != nil {
		return domain.Coup{}, err
	}
	actor, err := e.Repo.GetActor(ctx, actorID)
	if err != nil {
		return domain.Coup{}, err
	}
	now := e.now().UTC()
	if err := checkJoin(c, actor, side, now); err != nil {
		return domain.Coup{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Coup{}, err
	}
	defer tx.Rollback()
	nowStr := now.Format(time.RFC3339)
	if err := e.Repo.AddCoupMemberTx(ctx, tx, c.ID, actorID, side, nowStr); err != nil {
		return domain.Coup{}, err
	}
	if err := e.Events.Append(ctx, tx, "coup.joined", c.KingdomID, "coup", c.ID, actorID, events.EventPayload{"side": string(side)}); err != nil {
		return domain.Coup{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Coup{}, err
	}
	switch side {
	case domain.SideAttackers:
		c.Attackers = append(c.Attackers, actorID)
	case domain.SideDefenders:
		c.Defenders = append(c.Defenders, actorID)
	}
	return c, nil
}

// ParticipantResult summarizes what one participant gained or lost.
type ParticipantResult struct {
	ActorID                string          `json:"actor_id"`
	Side                   domain.CoupSide `json:"side"`
	GoldDelta              int             `json:"gold_delta"`
	ReputationDelta        int             `json:"reputation_delta"`
	KingdomReputationDelta int             `json:"kingdom_reputation_delta"`
	Executed               bool            `json:"executed,omitempty"`
}

// ResolutionResult is the full outcome returned by ResolveCoup.
type ResolutionResult struct {
	Coup         domain.Coup         `json:"coup"`
	Outcome      Outcome             `json:"outcome"`
	OldRulerID   *string             `json:"old_ruler_id,omitempty"`
	NewRulerID   *string             `json:"new_ruler_id,omitempty"`
	Participants []ParticipantResult `json:"participants"`
}

// ResolveCoup drives the single voting→resolved transition: snapshot
// participants, compute the battle, settle rewards and penalties, and
// persist everything atomically. A second call returns AlreadyResolved
// without touching any record.
func (e Engine) ResolveCoup(ctx context.Context, coupID string) (ResolutionResult, error) {
	c, err := e.getCoup(ctx, coupID)
	if err != nil {
		return ResolutionResult{}, err
	}

	unlock := e.locks.lock(c.KingdomID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ResolutionResult{}, err
	}
	defer tx.Rollback()

	// Re-read inside the transaction; the lock loser must observe the
	// resolved phase, not re-apply mutations.
	c, err = e.Repo.GetCoupTx(ctx, tx, coupID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ResolutionResult{}, ErrContestNotFound
		}
		return ResolutionResult{}, err
	}
	now := e.now().UTC()
	if err := checkResolvable(c, now); err != nil {
		return ResolutionResult{}, err
	}

	kingdom, err := e.Repo.GetKingdomTx(ctx, tx, c.KingdomID)
	if err != nil {
		return ResolutionResult{}, err
	}

	// One consistent snapshot of every participant, read before any
	// mutation, so strength and settlement see the same numbers.
	snapshot := map[string]domain.Actor{}
	var attackers, defenders []domain.Actor
	for _, id := range c.Attackers {
		a, err := e.Repo.GetActorTx(ctx, tx, id)
		if err != nil {
			return ResolutionResult{}, err
		}
		snapshot[id] = a
		attackers = append(attackers, a)
	}
	for _, id := range c.Defenders {
		a, err := e.Repo.GetActorTx(ctx, tx, id)
		if err != nil {
			return ResolutionResult{}, err
		}
		snapshot[id] = a
		defenders = append(defenders, a)
	}
	if kingdom.RulerID != nil {
		if _, ok := snapshot[*kingdom.RulerID]; !ok {
			a, err := e.Repo.GetActorTx(ctx, tx, *kingdom.RulerID)
			if err != nil {
				return ResolutionResult{}, err
			}
			snapshot[a.ID] = a
		}
	}

	bal := e.balance()
	out := ResolveBattle(attackers, defenders, bal.DefenseMultiplier)
	settlement := BuildSettlement(out, c, snapshot, kingdom.RulerID, bal)

	for _, m := range settlement.Mutations {
		a := snapshot[m.ActorID]
		a.Gold += m.GoldDelta
		a.Reputation += m.ReputationDelta
		if m.ResetPowers {
			a.AttackPower = bal.PowerFloor
			a.DefensePower = bal.PowerFloor
		}
		a.CoupsWon += m.CoupsWonDelta
		a.CoupsFailed += m.CoupsFailedDelta
		a.TimesExecuted += m.TimesExecutedDelta
		if err := e.Repo.UpdateActorTx(ctx, tx, a); err != nil {
			return ResolutionResult{}, err
		}
		if m.KingdomReputationDelta != 0 {
			if err := e.Repo.AddKingdomReputationTx(ctx, tx, m.ActorID, c.KingdomID, m.KingdomReputationDelta); err != nil {
				return ResolutionResult{}, err
			}
		}
	}
	if settlement.NewRulerID != nil {
		if err := e.Repo.SetRulerTx(ctx, tx, c.KingdomID, settlement.NewRulerID); err != nil {
			return ResolutionResult{}, err
		}
	}

	nowStr := now.Format(time.RFC3339)
	c.Phase = domain.PhaseResolved
	c.AttackerVictory = &out.AttackerVictory
	c.AttackerStrength = &out.AttackerStrength
	c.DefenderStrength = &out.DefenderStrength
	c.RequiredStrength = &out.RequiredStrength
	c.ResolvedAt = &nowStr
	if err := e.Repo.MarkResolvedTx(ctx, tx, c); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ResolutionResult{}, ErrAlreadyResolved
		}
		return ResolutionResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "coup.resolved", c.KingdomID, "coup", c.ID, c.InitiatorID, events.EventPayload{
		"attacker_victory":  out.AttackerVictory,
		"attacker_strength": out.AttackerStrength,
		"defender_strength": out.DefenderStrength,
		"required_strength": out.RequiredStrength,
	}); err != nil {
		return ResolutionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ResolutionResult{}, err
	}

	return ResolutionResult{
		Coup:         c,
		Outcome:      out,
		OldRulerID:   settlement.OldRulerID,
		NewRulerID:   settlement.NewRulerID,
		Participants: participantResults(c, settlement),
	}, nil
}

func participantResults(c domain.Coup, s Settlement) []ParticipantResult {
	byActor := map[string]Mutation{}
	for _, m := range s.Mutations {
		byActor[m.ActorID] = m
	}
	var res []ParticipantResult
	add := func(id string, side domain.CoupSide) {
		m := byActor[id]
		res = append(res, ParticipantResult{
			ActorID:                id,
			Side:                   side,
			GoldDelta:              m.GoldDelta,
			ReputationDelta:        m.ReputationDelta,
			KingdomReputationDelta: m.KingdomReputationDelta,
			Executed:               m.ResetPowers,
		})
	}
	for _, id := range c.Attackers {
		add(id, domain.SideAttackers)
	}
	for _, id := range c.Defenders {
		add(id, domain.SideDefenders)
	}
	return res
}

func (e Engine) getCoup(ctx context.Context, coupID string) (domain.Coup, error) {
	c, err := e.Repo.GetCoup(ctx, coupID)
	if errors.Is(err, repo.ErrNotFound) {
		return c, ErrContestNotFound
	}
	return c, err
}

// GetCoup returns a single coup record with side membership.
func (e Engine) GetCoup(ctx context.Context, coupID string) (domain.Coup, error) {
	return e.getCoup(ctx, coupID)
}

// CoupSummary is the read-only view returned by ListActiveCoups.
type CoupSummary struct {
	ID                   string          `json:"id"`
	KingdomID            string          `json:"kingdom_id"`
	InitiatorID          string          `json:"initiator_id"`
	EndsAt               string          `json:"ends_at" format:"date-time"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds"`
	AttackerCount        int             `json:"attacker_count"`
	DefenderCount        int             `json:"defender_count"`
	ViewerSide           domain.CoupSide `json:"viewer_side,omitempty"`
}

// ListActiveCoups returns summaries of voting-phase coups. viewerID is
// optional; when the viewer joined a side it is echoed back.
func (e Engine) ListActiveCoups(ctx context.Context, kingdomID, viewerID string) ([]CoupSummary, error) {
	coups, err := e.Repo.ListActiveCoups(ctx, kingdomID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	res := make([]CoupSummary, 0, len(coups))
	for _, c := range coups {
		remaining := 0
		if ends, err := time.Parse(time.RFC3339, c.EndsAt); err == nil {
			if d := ends.Sub(now); d > 0 {
				remaining = int(d.Seconds())
			}
		}
		summary := CoupSummary{
			ID:                   c.ID,
			KingdomID:            c.KingdomID,
			InitiatorID:          c.InitiatorID,
			EndsAt:               c.EndsAt,
			TimeRemainingSeconds: remaining,
			AttackerCount:        len(c.Attackers),
			DefenderCount:        len(c.Defenders),
		}
		if viewerID != "" {
			summary.ViewerSide = c.OnSide(viewerID)
		}
		res = append(res, summary)
	}
	return res, nil
}

// SweepResult is one entry of a sweep run.
type SweepResult struct {
	CoupID          string `json:"coup_id"`
	KingdomID       string `json:"kingdom_id"`
	AttackerVictory bool   `json:"attacker_victory"`
	Error           string `json:"error,omitempty"`
}

// SweepExpired resolves every voting coup whose window has elapsed.
// One coup's failure never aborts the scan: each result carries its
// own error, and a race with a manual resolve simply reports
// already_resolved for that coup.
func (e Engine) SweepExpired(ctx context.Context) ([]SweepResult, error) {
	now := e.now().UTC().Format(time.RFC3339)
	expired, err := e.Repo.ListExpiredVoting(ctx, now)
	if err != nil {
		return nil, err
	}
	results := make([]SweepResult, 0, len(expired))
	for _, c := range expired {
		r := SweepResult{CoupID: c.ID, KingdomID: c.KingdomID}
		res, err := e.ResolveCoup(ctx, c.ID)
		if err != nil {
			r.Error = err.Error()
		} else {
			r.AttackerVictory = res.Outcome.AttackerVictory
		}
		results = append(results, r)
	}
	return results, nil
}
