package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"kingdom/internal/config"
	"kingdom/internal/db"
	"kingdom/internal/domain"
	"kingdom/internal/engine"
	"kingdom/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Now    *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return now }
	eng.Events.Now = eng.Now
	return testEnv{Engine: eng, Ctx: context.Background(), Now: &now}
}

func (env testEnv) advance(d time.Duration) {
	*env.Now = env.Now.Add(d)
}

func (env testEnv) seedActor(t *testing.T, id string, gold, attack, defense int) domain.Actor {
	t.Helper()
	a, err := env.Engine.CreateActor(env.Ctx, engine.ActorCreateOptions{
		ID:           id,
		Name:         id,
		Gold:         gold,
		AttackPower:  attack,
		DefensePower: defense,
	})
	if err != nil {
		t.Fatalf("seed actor %s: %v", id, err)
	}
	return a
}

func (env testEnv) seedKingdom(t *testing.T, id, rulerID string) domain.Kingdom {
	t.Helper()
	k, err := env.Engine.CreateKingdom(env.Ctx, engine.KingdomCreateOptions{
		ID:      id,
		Name:    id,
		RulerID: rulerID,
	})
	if err != nil {
		t.Fatalf("seed kingdom %s: %v", id, err)
	}
	return k
}

// seedRebel makes an actor eligible to initiate in kingdomID: checked
// in, kingdom reputation at the floor, gold as given.
func (env testEnv) seedRebel(t *testing.T, id, kingdomID string, gold, attack int) domain.Actor {
	t.Helper()
	a := env.seedActor(t, id, gold, attack, 1)
	if _, err := env.Engine.CheckIn(env.Ctx, id, kingdomID); err != nil {
		t.Fatalf("checkin %s: %v", id, err)
	}
	if err := env.Engine.Repo.SetKingdomReputation(env.Ctx, id, kingdomID, 300); err != nil {
		t.Fatalf("seed reputation: %v", err)
	}
	return a
}

func TestInitiateEligibility(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 0, 1, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedKingdom(t, "wilds", "")

	// Unclaimed kingdom cannot be contested.
	env.seedRebel(t, "wanderer", "wilds", 100, 5)
	if _, err := env.Engine.InitiateCoup(env.Ctx, "wanderer", "wilds"); !errors.Is(err, engine.ErrKingdomUnclaimed) {
		t.Fatalf("expected kingdom_unclaimed, got %v", err)
	}

	// Rulers cannot coup themselves.
	if _, err := env.Engine.CheckIn(env.Ctx, "king", "realm"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Repo.SetKingdomReputation(env.Ctx, "king", "realm", 999); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.InitiateCoup(env.Ctx, "king", "realm"); !errors.Is(err, engine.ErrAlreadyRuler) {
		t.Fatalf("expected already_ruler, got %v", err)
	}

	// Kingdom reputation floor is strict: 299 fails, 300 passes on to
	// the next check.
	env.seedActor(t, "newcomer", 100, 5, 1)
	if _, err := env.Engine.CheckIn(env.Ctx, "newcomer", "realm"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Repo.SetKingdomReputation(env.Ctx, "newcomer", "realm", 299); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.InitiateCoup(env.Ctx, "newcomer", "realm"); !errors.Is(err, engine.ErrInsufficientReputation) {
		t.Fatalf("expected insufficient_reputation at 299, got %v", err)
	}
	if err := env.Engine.Repo.SetKingdomReputation(env.Ctx, "newcomer", "realm", 300); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.InitiateCoup(env.Ctx, "newcomer", "realm"); err != nil {
		t.Fatalf("expected success at 300, got %v", err)
	}
}

func TestInitiateRequiresGoldAndCheckIn(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 0, 1, 10)
	env.seedKingdom(t, "realm", "king")

	poor := env.seedRebel(t, "poor", "realm", 49, 5)
	if poor.Gold != 49 {
		t.Fatalf("seed gold: %+v", poor)
	}
	if _, err := env.Engine.InitiateCoup(env.Ctx, "poor", "realm"); !errors.Is(err, engine.ErrInsufficientGold) {
		t.Fatalf("expected insufficient_gold, got %v", err)
	}

	// Checked into a different kingdom counts as absent.
	env.seedKingdom(t, "elsewhere", "")
	env.seedActor(t, "tourist", 100, 5, 1)
	if err := env.Engine.Repo.SetKingdomReputation(env.Ctx, "tourist", "realm", 300); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CheckIn(env.Ctx, "tourist", "elsewhere"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.InitiateCoup(env.Ctx, "tourist", "realm"); !errors.Is(err, engine.ErrNotCheckedIn) {
		t.Fatalf("expected not_checked_in, got %v", err)
	}
}

func TestInitiateChargesAndSchedules(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 0, 1, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedRebel(t, "rebel", "realm", 100, 5)

	start := *env.Now
	c, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "realm")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if c.Phase != domain.PhaseVoting {
		t.Fatalf("expected voting phase, got %s", c.Phase)
	}
	if c.EndsAt != start.Add(2*time.Hour).Format(time.RFC3339) {
		t.Fatalf("expected 2h window, got %s", c.EndsAt)
	}
	if len(c.Attackers) != 1 || c.Attackers[0] != "rebel" {
		t.Fatalf("initiator must open the attacker side: %+v", c.Attackers)
	}
	a, err := env.Engine.Repo.GetActor(env.Ctx, "rebel")
	if err != nil {
		t.Fatal(err)
	}
	if a.Gold != 50 {
		t.Fatalf("expected 50 gold after paying the cost, got %d", a.Gold)
	}
	if a.LastCoupAttempt == nil || *a.LastCoupAttempt != start.Format(time.RFC3339) {
		t.Fatalf("expected last attempt recorded, got %v", a.LastCoupAttempt)
	}
}

func TestSingleContestAndCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 0, 1, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedRebel(t, "rebel", "realm", 200, 5)
	env.seedRebel(t, "rival", "realm", 200, 5)

	if _, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "realm"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	// Second contest in the same kingdom is rejected regardless of who
	// asks.
	if _, err := env.Engine.InitiateCoup(env.Ctx, "rival", "realm"); !errors.Is(err, engine.ErrContestAlreadyActive) {
		t.Fatalf("expected contest_already_active, got %v", err)
	}

	// The initiator is on cooldown everywhere, even in other kingdoms.
	env.seedActor(t, "queen", 0, 1, 10)
	env.seedKingdom(t, "duchy", "queen")
	if _, err := env.Engine.CheckIn(env.Ctx, "rebel", "duchy"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Repo.SetKingdomReputation(env.Ctx, "rebel", "duchy", 300); err != nil {
		t.Fatal(err)
	}
	env.advance(23 * time.Hour)
	if _, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "duchy"); !errors.Is(err, engine.ErrCooldownActive) {
		t.Fatalf("expected cooldown_active at 23h, got %v", err)
	}
	env.advance(time.Hour)
	if _, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "duchy"); err != nil {
		t.Fatalf("expected success at 24h, got %v", err)
	}
}

func TestJoinSemantics(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 0, 1, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedRebel(t, "rebel", "realm", 100, 5)
	c, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "realm")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	env.seedActor(t, "loyalist", 0, 1, 8)
	if _, err := env.Engine.CheckIn(env.Ctx, "loyalist", "realm"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "loyalist", "sideways"); !errors.Is(err, engine.ErrInvalidSide) {
		t.Fatalf("expected invalid_side, got %v", err)
	}
	joined, err := env.Engine.JoinCoup(env.Ctx, c.ID, "loyalist", domain.SideDefenders)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.Defenders) != 1 || joined.Defenders[0] != "loyalist" {
		t.Fatalf("unexpected defenders: %+v", joined.Defenders)
	}
	// One side per actor, no switching.
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "loyalist", domain.SideAttackers); !errors.Is(err, engine.ErrAlreadyJoined) {
		t.Fatalf("expected already_joined, got %v", err)
	}
	// The initiator already holds the attacker side.
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "rebel", domain.SideAttackers); !errors.Is(err, engine.ErrAlreadyJoined) {
		t.Fatalf("expected already_joined for initiator, got %v", err)
	}

	// Spectators must be checked into the contested kingdom.
	env.seedActor(t, "outsider", 0, 3, 1)
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "outsider", domain.SideAttackers); !errors.Is(err, engine.ErrNotCheckedIn) {
		t.Fatalf("expected not_checked_in, got %v", err)
	}

	// The window closes at ends_at exactly.
	env.advance(2 * time.Hour)
	env.seedActor(t, "latecomer", 0, 3, 1)
	if _, err := env.Engine.CheckIn(env.Ctx, "latecomer", "realm"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "latecomer", domain.SideAttackers); !errors.Is(err, engine.ErrVotingClosed) {
		t.Fatalf("expected voting_closed, got %v", err)
	}
	if _, err := env.Engine.JoinCoup(env.Ctx, "missing", "latecomer", domain.SideAttackers); !errors.Is(err, engine.ErrContestNotFound) {
		t.Fatalf("expected contest_not_found, got %v", err)
	}
}

func TestResolveVictory(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 5000, 1, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedRebel(t, "rebel", "realm", 100, 35)
	c, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "realm")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	env.seedActor(t, "loyalist", 0, 1, 20)
	if _, err := env.Engine.CheckIn(env.Ctx, "loyalist", "realm"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "loyalist", domain.SideDefenders); err != nil {
		t.Fatal(err)
	}

	if _, err := env.Engine.ResolveCoup(env.Ctx, c.ID); !errors.Is(err, engine.ErrNotYetResolvable) {
		t.Fatalf("expected not_yet_resolvable before the window closes, got %v", err)
	}

	env.advance(3 * time.Hour)
	res, err := env.Engine.ResolveCoup(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 35 attack vs 20 defense: required 25, strict majority for the
	// attackers.
	if !res.Outcome.AttackerVictory || res.Outcome.RequiredStrength != 25 {
		t.Fatalf("unexpected outcome: %+v", res.Outcome)
	}
	if res.NewRulerID == nil || *res.NewRulerID != "rebel" {
		t.Fatalf("expected rebel crowned, got %v", res.NewRulerID)
	}

	k, err := env.Engine.Repo.GetKingdom(env.Ctx, "realm")
	if err != nil {
		t.Fatal(err)
	}
	if k.RulerID == nil || *k.RulerID != "rebel" {
		t.Fatalf("kingdom ruler not updated: %+v", k)
	}
	rebel, _ := env.Engine.Repo.GetActor(env.Ctx, "rebel")
	if rebel.Gold != 100-50+1000 {
		t.Fatalf("expected 1050 gold, got %d", rebel.Gold)
	}
	if rebel.Reputation != 50 || rebel.CoupsWon != 1 {
		t.Fatalf("unexpected rebel stats: %+v", rebel)
	}
	rep, _ := env.Engine.Repo.KingdomReputation(env.Ctx, "rebel", "realm")
	if rep != 350 {
		t.Fatalf("expected kingdom reputation 350, got %d", rep)
	}
	// The deposed ruler loses the title and nothing else.
	king, _ := env.Engine.Repo.GetActor(env.Ctx, "king")
	if king.Gold != 5000 || king.Reputation != 0 {
		t.Fatalf("deposed ruler must be otherwise untouched: %+v", king)
	}
	// Losing defenders are untouched on victory.
	loyalist, _ := env.Engine.Repo.GetActor(env.Ctx, "loyalist")
	if loyalist.Gold != 0 || loyalist.Reputation != 0 {
		t.Fatalf("defender must be untouched: %+v", loyalist)
	}
}

func TestResolveDefeat(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 5000, 1, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedRebel(t, "rebel", "realm", 100, 10)
	c, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "realm")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	env.seedActor(t, "loyalist", 0, 1, 20)
	if _, err := env.Engine.CheckIn(env.Ctx, "loyalist", "realm"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "loyalist", domain.SideDefenders); err != nil {
		t.Fatal(err)
	}

	env.advance(3 * time.Hour)
	res, err := env.Engine.ResolveCoup(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome.AttackerVictory {
		t.Fatalf("expected defeat: %+v", res.Outcome)
	}
	if res.NewRulerID != nil {
		t.Fatalf("ruler must keep the throne: %v", *res.NewRulerID)
	}

	rebel, _ := env.Engine.Repo.GetActor(env.Ctx, "rebel")
	if rebel.Gold != 0 {
		t.Fatalf("expected execution to strip all gold, got %d", rebel.Gold)
	}
	if rebel.Reputation != -100 || rebel.AttackPower != 1 || rebel.DefensePower != 1 {
		t.Fatalf("unexpected rebel stats after execution: %+v", rebel)
	}
	if rebel.CoupsFailed != 1 || rebel.TimesExecuted != 1 {
		t.Fatalf("unexpected rebel counters: %+v", rebel)
	}
	rep, _ := env.Engine.Repo.KingdomReputation(env.Ctx, "rebel", "realm")
	if rep != 200 {
		t.Fatalf("expected kingdom reputation 300-100=200, got %d", rep)
	}
	// The rebel had 50 gold left after the initiation fee; the ruler
	// seizes exactly that.
	king, _ := env.Engine.Repo.GetActor(env.Ctx, "king")
	if king.Gold != 5050 {
		t.Fatalf("expected ruler to seize 50 gold, got %d", king.Gold)
	}
	if king.Reputation != 50 {
		t.Fatalf("expected ruler +50 reputation, got %d", king.Reputation)
	}
	loyalist, _ := env.Engine.Repo.GetActor(env.Ctx, "loyalist")
	if loyalist.Gold != 200 || loyalist.Reputation != 30 {
		t.Fatalf("unexpected defender bounty: %+v", loyalist)
	}
}

func TestResolveDefeatRulerJoinsAttackers(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 5000, 3, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedRebel(t, "rebel", "realm", 100, 10)
	c, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "realm")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	// Nothing stops the ruler from backing the coup against their own
	// throne.
	if _, err := env.Engine.CheckIn(env.Ctx, "king", "realm"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "king", domain.SideAttackers); err != nil {
		t.Fatalf("ruler join: %v", err)
	}
	env.seedActor(t, "loyalist", 0, 1, 20)
	if _, err := env.Engine.CheckIn(env.Ctx, "loyalist", "realm"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "loyalist", domain.SideDefenders); err != nil {
		t.Fatal(err)
	}

	env.advance(3 * time.Hour)
	res, err := env.Engine.ResolveCoup(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 10+3 attack vs 20 defense, required 25: defeat.
	if res.Outcome.AttackerVictory {
		t.Fatalf("expected defeat: %+v", res.Outcome)
	}

	// The king seizes only the rebel's remaining 50 gold; their own
	// stripped gold flows straight back, never duplicated.
	king, _ := env.Engine.Repo.GetActor(env.Ctx, "king")
	if king.Gold != 5050 {
		t.Fatalf("expected king gold 5050, got %d", king.Gold)
	}
	if king.AttackPower != 1 || king.DefensePower != 1 {
		t.Fatalf("king must be executed with powers reset: %+v", king)
	}
	if king.CoupsFailed != 1 || king.TimesExecuted != 1 {
		t.Fatalf("unexpected king counters: %+v", king)
	}
	if king.Reputation != -50 {
		t.Fatalf("expected king reputation -100+50, got %d", king.Reputation)
	}
	rebel, _ := env.Engine.Repo.GetActor(env.Ctx, "rebel")
	if rebel.Gold != 0 {
		t.Fatalf("expected rebel stripped, got %d", rebel.Gold)
	}
	for _, p := range res.Participants {
		if p.ActorID == "king" && !p.Executed {
			t.Fatalf("king must be reported as executed: %+v", p)
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 1000, 1, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedRebel(t, "rebel", "realm", 100, 10)
	c, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "realm")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	env.advance(3 * time.Hour)
	if _, err := env.Engine.ResolveCoup(env.Ctx, c.ID); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	before, _ := env.Engine.Repo.GetActor(env.Ctx, "king")
	if _, err := env.Engine.ResolveCoup(env.Ctx, c.ID); !errors.Is(err, engine.ErrAlreadyResolved) {
		t.Fatalf("expected already_resolved, got %v", err)
	}
	after, _ := env.Engine.Repo.GetActor(env.Ctx, "king")
	if before.Gold != after.Gold || before.Reputation != after.Reputation {
		t.Fatalf("second resolve mutated state: %+v vs %+v", before, after)
	}
	got, err := env.Engine.GetCoup(env.Ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != domain.PhaseResolved || got.ResolvedAt == nil || got.AttackerVictory == nil {
		t.Fatalf("resolution fields not persisted: %+v", got)
	}
}

func TestListActiveCoups(t *testing.T) {
	env := newTestEnv(t)
	env.seedActor(t, "king", 0, 1, 10)
	env.seedKingdom(t, "realm", "king")
	env.seedRebel(t, "rebel", "realm", 100, 5)
	c, err := env.Engine.InitiateCoup(env.Ctx, "rebel", "realm")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	env.seedActor(t, "loyalist", 0, 1, 8)
	if _, err := env.Engine.CheckIn(env.Ctx, "loyalist", "realm"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.JoinCoup(env.Ctx, c.ID, "loyalist", domain.SideDefenders); err != nil {
		t.Fatal(err)
	}

	env.advance(30 * time.Minute)
	items, err := env.Engine.ListActiveCoups(env.Ctx, "realm", "loyalist")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 active coup, got %d", len(items))
	}
	s := items[0]
	if s.AttackerCount != 1 || s.DefenderCount != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.TimeRemainingSeconds != int((90 * time.Minute).Seconds()) {
		t.Fatalf("expected 90m remaining, got %d", s.TimeRemainingSeconds)
	}
	if s.ViewerSide != domain.SideDefenders {
		t.Fatalf("expected viewer on defenders, got %q", s.ViewerSide)
	}

	// Resolved coups drop out of the listing.
	env.advance(2 * time.Hour)
	if _, err := env.Engine.ResolveCoup(env.Ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	items, err = env.Engine.ListActiveCoups(env.Ctx, "realm", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty listing, got %+v", items)
	}
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	expired := []string{"alpha", "beta", "gamma"}
	for _, kid := range expired {
		env.seedActor(t, "king-"+kid, 0, 1, 10)
		env.seedKingdom(t, kid, "king-"+kid)
		env.seedRebel(t, "rebel-"+kid, kid, 100, 5)
		if _, err := env.Engine.InitiateCoup(env.Ctx, "rebel-"+kid, kid); err != nil {
			t.Fatalf("initiate %s: %v", kid, err)
		}
	}
	// One coup started late enough to still be open at sweep time.
	env.advance(90 * time.Minute)
	env.seedActor(t, "king-delta", 0, 1, 10)
	env.seedKingdom(t, "delta", "king-delta")
	env.seedRebel(t, "rebel-delta", "delta", 100, 5)
	if _, err := env.Engine.InitiateCoup(env.Ctx, "rebel-delta", "delta"); err != nil {
		t.Fatalf("initiate delta: %v", err)
	}

	env.advance(time.Hour)
	results, err := env.Engine.SweepExpired(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 resolutions, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Error != "" {
			t.Fatalf("sweep entry failed: %+v", r)
		}
		if r.KingdomID == "delta" {
			t.Fatalf("future coup swept early: %+v", r)
		}
	}
	// A second sweep finds nothing left.
	results, err = env.Engine.SweepExpired(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty second sweep, got %+v", results)
	}
}
