package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kingdom/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const actorColumns = `id,name,gold,reputation,attack_power,defense_power,checked_in_kingdom,last_coup_attempt,coups_won,coups_failed,times_executed,created_at`

func scanActor(scan func(dest ...any) error) (domain.Actor, error) {
	var a domain.Actor
	var checkedIn, lastAttempt sql.NullString
	err := scan(&a.ID, &a.Name, &a.Gold, &a.Reputation, &a.AttackPower, &a.DefensePower,
		&checkedIn, &lastAttempt, &a.CoupsWon, &a.CoupsFailed, &a.TimesExecuted, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if checkedIn.Valid {
		a.CheckedInKingdom = &checkedIn.String
	}
	if lastAttempt.Valid {
		a.LastCoupAttempt = &lastAttempt.String
	}
	return a, nil
}

func (r Repo) InsertActor(ctx context.Context, a domain.Actor) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO actors(`+actorColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Gold, a.Reputation, a.AttackPower, a.DefensePower,
		nullableStringPtr(a.CheckedInKingdom), nullableStringPtr(a.LastCoupAttempt),
		a.CoupsWon, a.CoupsFailed, a.TimesExecuted, a.CreatedAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+actorColumns+` FROM actors WHERE id=?`, id)
	return scanActor(row.Scan)
}

func (r Repo) GetActorTx(ctx context.Context, tx *sql.Tx, id string) (domain.Actor, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+actorColumns+` FROM actors WHERE id=?`, id)
	return scanActor(row.Scan)
}

func (r Repo) UpdateActorTx(ctx context.Context, tx *sql.Tx, a domain.Actor) error {
	res, err := tx.ExecContext(ctx, `UPDATE actors SET name=?, gold=?, reputation=?, attack_power=?, defense_power=?, checked_in_kingdom=?, last_coup_attempt=?, coups_won=?, coups_failed=?, times_executed=? WHERE id=?`,
		a.Name, a.Gold, a.Reputation, a.AttackPower, a.DefensePower,
		nullableStringPtr(a.CheckedInKingdom), nullableStringPtr(a.LastCoupAttempt),
		a.CoupsWon, a.CoupsFailed, a.TimesExecuted, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListActors(ctx context.Context) ([]domain.Actor, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		a, err := scanActor(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// SetCheckIn records which kingdom an actor is currently checked into.
// Empty kingdomID clears the check-in.
func (r Repo) SetCheckIn(ctx context.Context, tx *sql.Tx, actorID, kingdomID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE actors SET checked_in_kingdom=? WHERE id=?`, nullable(kingdomID), actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// KingdomReputation returns the actor's kingdom-scoped reputation,
// defaulting to 0 when no row exists.
func (r Repo) KingdomReputation(ctx context.Context, actorID, kingdomID string) (int, error) {
	var rep int
	err := r.DB.QueryRowContext(ctx, `SELECT reputation FROM actor_reputations WHERE actor_id=? AND kingdom_id=?`, actorID, kingdomID).Scan(&rep)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return rep, err
}

func (r Repo) AddKingdomReputationTx(ctx context.Context, tx *sql.Tx, actorID, kingdomID string, delta int) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO actor_reputations(actor_id,kingdom_id,reputation) VALUES (?,?,?)
ON CONFLICT(actor_id,kingdom_id) DO UPDATE SET reputation=reputation+excluded.reputation`, actorID, kingdomID, delta)
	return err
}

// SetKingdomReputation overwrites the kingdom-scoped reputation; used
// by admin/seed paths rather than the resolution flow.
func (r Repo) SetKingdomReputation(ctx context.Context, actorID, kingdomID string, rep int) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO actor_reputations(actor_id,kingdom_id,reputation) VALUES (?,?,?)
ON CONFLICT(actor_id,kingdom_id) DO UPDATE SET reputation=excluded.reputation`, actorID, kingdomID, rep)
	return err
}

const kingdomColumns = `id,name,ruler_id,treasury_gold,fortification_level,created_at`

func scanKingdom(scan func(dest ...any) error) (domain.Kingdom, error) {
	var k domain.Kingdom
	var ruler sql.NullString
	err := scan(&k.ID, &k.Name, &ruler, &k.TreasuryGold, &k.FortificationLevel, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return k, ErrNotFound
	}
	if err != nil {
		return k, err
	}
	if ruler.Valid {
		k.RulerID = &ruler.String
	}
	return k, nil
}

func (r Repo) InsertKingdom(ctx context.Context, k domain.Kingdom) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO kingdoms(`+kingdomColumns+`) VALUES (?,?,?,?,?,?)`,
		k.ID, k.Name, nullableStringPtr(k.RulerID), k.TreasuryGold, k.FortificationLevel, k.CreatedAt)
	return err
}

func (r Repo) GetKingdom(ctx context.Context, id string) (domain.Kingdom, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+kingdomColumns+` FROM kingdoms WHERE id=?`, id)
	return scanKingdom(row.Scan)
}

func (r Repo) GetKingdomTx(ctx context.Context, tx *sql.Tx, id string) (domain.Kingdom, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+kingdomColumns+` FROM kingdoms WHERE id=?`, id)
	return scanKingdom(row.Scan)
}

func (r Repo) ListKingdoms(ctx context.Context) ([]domain.Kingdom, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+kingdomColumns+` FROM kingdoms ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Kingdom
	for rows.Next() {
		k, err := scanKingdom(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}

func (r Repo) SetRulerTx(ctx context.Context, tx *sql.Tx, kingdomID string, rulerID *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE kingdoms SET ruler_id=? WHERE id=?`, nullableStringPtr(rulerID), kingdomID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) LatestEvents(ctx context.Context, limit int, cursor int64, kingdomID, evtType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if kingdomID != "" {
		clauses = append(clauses, "kingdom_id=?")
		args = append(args, kingdomID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,kingdom_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var kingdom, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &kingdom, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if kingdom.Valid {
			e.KingdomID = kingdom.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
