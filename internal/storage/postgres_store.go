package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/territory-run/internal/geo"
	"github.com/example/territory-run/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreatePath(ctx context.Context, cp *models.CapturePath) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO capture_paths(id, user_id, territory_id, status, points_count, started_at)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		cp.ID, cp.UserID, cp.TerritoryID, cp.Status, len(cp.Samples), cp.StartedAt)
	if err != nil {
		// 23505 on the partial unique index means a concurrent open path won.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOpenPath
		}
		return err
	}
	for i, s := range cp.Samples {
		if err := insertSample(ctx, tx, cp.ID, i, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertSample(ctx context.Context, tx *sql.Tx, pathID string, idx int, s models.GpsSample) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO path_samples(path_id, idx, lat, lon, accuracy_m, speed_mps, altitude_m, heading, recorded_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		pathID, idx, s.Loc.Lat, s.Loc.Lon, s.AccuracyM, s.SpeedMps, s.AltitudeM, s.Heading, s.Timestamp)
	return err
}

func (p *PostgresStore) Path(ctx context.Context, id string) (*models.CapturePath, error) {
	var cp models.CapturePath
	var endedAt sql.NullTime
	err := p.db.QueryRowContext(ctx,
		`SELECT id, user_id, territory_id, status, points_count, started_at, ended_at
		 FROM capture_paths WHERE id=$1`, id).
		Scan(&cp.ID, &cp.UserID, &cp.TerritoryID, &cp.Status, &cp.PointsCount, &cp.StartedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		cp.EndedAt = &endedAt.Time
	}
	return &cp, nil
}

func (p *PostgresStore) AppendSample(ctx context.Context, pathID string, s models.GpsSample) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`UPDATE capture_paths SET points_count = points_count + 1 WHERE id=$1 RETURNING points_count`,
		pathID).Scan(&count); err != nil {
		return 0, err
	}
	if err := insertSample(ctx, tx, pathID, count-1, s); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

func (p *PostgresStore) LastSamples(ctx context.Context, pathID string, n int) ([]models.GpsSample, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT lat, lon, accuracy_m, speed_mps, altitude_m, heading, recorded_at
		 FROM path_samples WHERE path_id=$1 ORDER BY idx DESC LIMIT $2`, pathID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanSamples(rows)
	if err != nil {
		return nil, err
	}
	// query returned newest first; callers want chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (p *PostgresStore) PathSamples(ctx context.Context, pathID string) ([]models.GpsSample, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT lat, lon, accuracy_m, speed_mps, altitude_m, heading, recorded_at
		 FROM path_samples WHERE path_id=$1 ORDER BY idx ASC`, pathID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSamples(rows)
}

func scanSamples(rows *sql.Rows) ([]models.GpsSample, error) {
	var out []models.GpsSample
	for rows.Next() {
		var s models.GpsSample
		var speed, alt, heading sql.NullFloat64
		if err := rows.Scan(&s.Loc.Lat, &s.Loc.Lon, &s.AccuracyM, &speed, &alt, &heading, &s.Timestamp); err != nil {
			return nil, err
		}
		if speed.Valid {
			v := speed.Float64
			s.SpeedMps = &v
		}
		if alt.Valid {
			v := alt.Float64
			s.AltitudeM = &v
		}
		if heading.Valid {
			v := heading.Float64
			s.Heading = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ClosePath(ctx context.Context, pathID, status string, at time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE capture_paths SET status=$1, ended_at=$2 WHERE id=$3`, status, at, pathID)
	return err
}

func (p *PostgresStore) Territory(ctx context.Context, id string) (*models.Territory, error) {
	var t models.Territory
	var boundary []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, difficulty, base_points, boundary FROM territories WHERE id=$1`, id).
		Scan(&t.ID, &t.Name, &t.Difficulty, &t.BasePoints, &boundary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Boundary, err = geo.BoundaryFromGeoJSON(boundary)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStore) ActiveCapture(ctx context.Context, territoryID string) (*models.TerritoryCapture, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, territory_id, team_id, user_id, method, points, fortification, active, captured_at, lost_at
		 FROM territory_captures WHERE territory_id=$1 AND active`, territoryID)
	return scanCapture(row)
}

func scanCapture(row *sql.Row) (*models.TerritoryCapture, error) {
	var c models.TerritoryCapture
	var lostAt sql.NullTime
	err := row.Scan(&c.ID, &c.TerritoryID, &c.TeamID, &c.UserID, &c.Method,
		&c.Points, &c.Fortification, &c.Active, &c.CapturedAt, &lostAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lostAt.Valid {
		c.LostAt = &lostAt.Time
	}
	return &c, nil
}

// TransferOwnership runs the deactivate-then-insert transition in one
// transaction, locking the current active row so racing completions cannot
// both end up active.
func (p *PostgresStore) TransferOwnership(ctx context.Context, c *models.TerritoryCapture) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var prevID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM territory_captures WHERE territory_id=$1 AND active FOR UPDATE`,
		c.TerritoryID).Scan(&prevID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if prevID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE territory_captures SET active=false, lost_at=$1 WHERE id=$2`,
			c.CapturedAt, prevID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO territory_captures(id, territory_id, team_id, user_id, method, points, fortification, active, captured_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,true,$8)`,
		c.ID, c.TerritoryID, c.TeamID, c.UserID, c.Method, c.Points, c.Fortification, c.CapturedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) IncrementFortification(ctx context.Context, captureID string) (int, error) {
	var level int
	err := p.db.QueryRowContext(ctx,
		`UPDATE territory_captures
		 SET fortification = fortification + 1, fortified_at = now()
		 WHERE id=$1 AND active AND fortification < 5
		   AND (fortified_at IS NULL OR fortified_at < now() - interval '24 hours')
		 RETURNING fortification`, captureID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrFortifyUnavailable
	}
	return level, err
}

func (p *PostgresStore) EnergyBalance(ctx context.Context, userID string) (models.EnergyBalance, bool, error) {
	var b models.EnergyBalance
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, remaining, last_reset FROM energy_balances WHERE user_id=$1`, userID).
		Scan(&b.UserID, &b.Remaining, &b.LastReset)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EnergyBalance{}, false, nil
	}
	if err != nil {
		return models.EnergyBalance{}, false, err
	}
	return b, true, nil
}

func (p *PostgresStore) SaveEnergyBalance(ctx context.Context, b models.EnergyBalance) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO energy_balances(user_id, remaining, last_reset) VALUES($1,$2,$3)
		 ON CONFLICT (user_id) DO UPDATE SET remaining=EXCLUDED.remaining, last_reset=EXCLUDED.last_reset`,
		b.UserID, b.Remaining, b.LastReset)
	return err
}

// DebitIfSufficient is a single conditional UPDATE so the check and the
// subtraction cannot race.
func (p *PostgresStore) DebitIfSufficient(ctx context.Context, userID string, cost int) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE energy_balances SET remaining = remaining - $2 WHERE user_id=$1 AND remaining >= $2`,
		userID, cost)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (p *PostgresStore) CreditEnergy(ctx context.Context, userID string, amount, capacity int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE energy_balances SET remaining = LEAST(remaining + $2, $3) WHERE user_id=$1`,
		userID, amount, capacity)
	return err
}

// ActiveTeam resolves the user's current team membership for the roster
// interface.
func (p *PostgresStore) ActiveTeam(ctx context.Context, userID string) (*models.Team, error) {
	var t models.Team
	err := p.db.QueryRowContext(ctx,
		`SELECT t.id, t.name FROM teams t
		 JOIN team_members m ON m.team_id = t.id
		 WHERE m.user_id = $1 AND m.active`, userID).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
