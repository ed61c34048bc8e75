package repo

import (
	"context"
	"database/sql"

	"kingdom/internal/domain"
)

const coupColumns = `id,kingdom_id,initiator_id,phase,started_at,ends_at,attacker_victory,attacker_strength,defender_strength,required_strength,resolved_at`

func scanCoup(scan func(dest ...any) error) (domain.Coup, error) {
	var c domain.Coup
	var phase string
	var victory sql.NullBool
	var attackerStrength, defenderStrength sql.NullInt64
	var requiredStrength sql.NullFloat64
	var resolvedAt sql.NullString
	err := scan(&c.ID, &c.KingdomID, &c.InitiatorID, &phase, &c.StartedAt, &c.EndsAt,
		&victory, &attackerStrength, &defenderStrength, &requiredStrength, &resolvedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Phase = domain.CoupPhase(phase)
	if victory.Valid {
		v := victory.Bool
		c.AttackerVictory = &v
	}
	if attackerStrength.Valid {
		n := int(attackerStrength.Int64)
		c.AttackerStrength = &n
	}
	if defenderStrength.Valid {
		n := int(defenderStrength.Int64)
		c.DefenderStrength = &n
	}
	if requiredStrength.Valid {
		f := requiredStrength.Float64
		c.RequiredStrength = &f
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.String
	}
	return c, nil
}

func (r Repo) InsertCoupTx(ctx context.Context, tx *sql.Tx, c domain.Coup) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO coups(id,kingdom_id,initiator_id,phase,started_at,ends_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.KingdomID, c.InitiatorID, string(c.Phase), c.StartedAt, c.EndsAt)
	return err
}

// GetCoup loads a coup and its side membership.
func (r Repo) GetCoup(ctx context.Context, id string) (domain.Coup, error) {
	c, err := scanCoup(r.DB.QueryRowContext(ctx, `SELECT `+coupColumns+` FROM coups WHERE id=?`, id).Scan)
	if err != nil {
		return c, err
	}
	return r.loadSides(ctx, nil, c)
}

func (r Repo) GetCoupTx(ctx context.Context, tx *sql.Tx, id string) (domain.Coup, error) {
	c, err := scanCoup(tx.QueryRowContext(ctx, `SELECT `+coupColumns+` FROM coups WHERE id=?`, id).Scan)
	if err != nil {
		return c, err
	}
	return r.loadSides(ctx, tx, c)
}

func (r Repo) loadSides(ctx context.Context, tx *sql.Tx, c domain.Coup) (domain.Coup, error) {
	query := `SELECT actor_id, side FROM coup_sides WHERE coup_id=? ORDER BY joined_at ASC, actor_id ASC`
	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, c.ID)
	} else {
		rows, err = r.DB.QueryContext(ctx, query, c.ID)
	}
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var actorID, side string
		if err := rows.Scan(&actorID, &side); err != nil {
			return c, err
		}
		switch domain.CoupSide(side) {
		case domain.SideAttackers:
			c.Attackers = append(c.Attackers, actorID)
		case domain.SideDefenders:
			c.Defenders = append(c.Defenders, actorID)
		}
	}
	return c, rows.Err()
}

func (r Repo) AddCoupMemberTx(ctx context.Context, tx *sql.Tx, coupID, actorID string, side domain.CoupSide, joinedAt string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO coup_sides(coup_id,actor_id,side,joined_at) VALUES (?,?,?,?)`,
		coupID, actorID, string(side), joinedAt)
	return err
}

// ActiveCoupForKingdom returns the voting-phase coup for a kingdom, or
// ErrNotFound. The schema plus this lookup enforce at most one.
func (r Repo) ActiveCoupForKingdom(ctx context.Context, kingdomID string) (domain.Coup, error) {
	c, err := scanCoup(r.DB.QueryRowContext(ctx,
		`SELECT `+coupColumns+` FROM coups WHERE kingdom_id=? AND phase='voting' LIMIT 1`, kingdomID).Scan)
	if err != nil {
		return c, err
	}
	return r.loadSides(ctx, nil, c)
}

// ListActiveCoups returns voting-phase coups, optionally scoped to one
// kingdom, newest first.
func (r Repo) ListActiveCoups(ctx context.Context, kingdomID string) ([]domain.Coup, error) {
	query := `SELECT ` + coupColumns + ` FROM coups WHERE phase='voting'`
	var args []any
	if kingdomID != "" {
		query += ` AND kingdom_id=?`
		args = append(args, kingdomID)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	return r.listCoups(ctx, query, args...)
}

// ListExpiredVoting returns voting-phase coups whose window has
// elapsed, oldest first so the sweep drains in order.
func (r Repo) ListExpiredVoting(ctx context.Context, now string) ([]domain.Coup, error) {
	return r.listCoups(ctx, `SELECT `+coupColumns+` FROM coups WHERE phase='voting' AND ends_at<=? ORDER BY ends_at ASC, id ASC`, now)
}

func (r Repo) listCoups(ctx context.Context, query string, args ...any) ([]domain.Coup, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Coup
	for rows.Next() {
		c, err := scanCoup(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, c := range res {
		loaded, err := r.loadSides(ctx, nil, c)
		if err != nil {
			return nil, err
		}
		res[i] = loaded
	}
	return res, nil
}

// MarkResolvedTx writes the resolution outputs and flips the phase.
// The phase guard in the WHERE clause makes the transition single-shot
// even if two resolvers race past the in-memory lock.
func (r Repo) MarkResolvedTx(ctx context.Context, tx *sql.Tx, c domain.Coup) error {
	res, err := tx.ExecContext(ctx, `UPDATE coups SET phase=?, attacker_victory=?, attacker_strength=?, defender_strength=?, required_strength=?, resolved_at=? WHERE id=? AND phase='voting'`,
		string(domain.PhaseResolved), *c.AttackerVictory, *c.AttackerStrength, *c.DefenderStrength, *c.RequiredStrength, *c.ResolvedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
