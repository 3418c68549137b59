package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Loader persists one parsed match.
type Loader interface {
	LoadMatch(ctx context.Context, m Match) error
}

// PostgresLoader replaces a match in a single transaction so reloading the
// same files is idempotent.
type PostgresLoader struct {
	db *sql.DB
}

func NewPostgresLoader(db *sql.DB) *PostgresLoader {
	return &PostgresLoader{db: db}
}

var matchChildTables = []string{"wpl_delivery", "wpl_official", "wpl_player", "wpl_team", "wpl_match_info"}

func (l *PostgresLoader) LoadMatch(ctx context.Context, m Match) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin match %s: %w", m.ID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range matchChildTables {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE match_id = $1`, m.ID); err != nil {
			return fmt.Errorf("clear %s for match %s: %w", table, m.ID, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM wpl_match WHERE match_id = $1`, m.ID); err != nil {
		return fmt.Errorf("clear wpl_match for match %s: %w", m.ID, err)
	}

	if err = insertMatch(ctx, tx, m); err != nil {
		return err
	}
	if err = insertDeliveries(ctx, tx, m); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit match %s: %w", m.ID, err)
	}
	return nil
}

func insertMatch(ctx context.Context, tx *sql.Tx, m Match) error {
	info := m.Info
	team1, team2 := info.Teams[0], info.Teams[1]
	if _, err := tx.ExecContext(ctx, `
INSERT INTO wpl_match (match_id, season, start_date, venue, city, team1, team2, event_name, match_number)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.Season, nullDate(m.StartDate), nullString(m.Venue), nullString(info.City), team1, team2,
		nullString(info.Event), nullInt(info.MatchNumber),
	); err != nil {
		return fmt.Errorf("insert wpl_match %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO wpl_match_info (
	match_id, gender, balls_per_over, toss_winner, toss_decision, winner, winner_runs,
	winner_wickets, outcome, eliminator, method, player_of_match
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, nullString(info.Gender), info.BallsPerOver, nullString(info.TossWinner), nullString(info.TossDecision),
		nullString(info.Winner), nullInt(info.WinnerRuns), nullInt(info.WinnerWickets), nullString(info.Outcome),
		nullString(info.Eliminator), nullString(info.Method), nullString(info.PlayerOfMatch),
	); err != nil {
		return fmt.Errorf("insert wpl_match_info %s: %w", m.ID, err)
	}

	for _, team := range info.Teams {
		if _, err := tx.ExecContext(ctx, `INSERT INTO wpl_team (match_id, team_name) VALUES ($1, $2) ON CONFLICT DO NOTHING`, m.ID, team); err != nil {
			return fmt.Errorf("insert wpl_team %s: %w", m.ID, err)
		}
	}
	for _, p := range info.Players {
		if _, err := tx.ExecContext(ctx, `INSERT INTO wpl_player (match_id, team_name, player_name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, m.ID, p.Team, p.Name); err != nil {
			return fmt.Errorf("insert wpl_player %s: %w", m.ID, err)
		}
	}
	for _, o := range info.Officials {
		if _, err := tx.ExecContext(ctx, `INSERT INTO wpl_official (match_id, role, official_name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, m.ID, o.Role, o.Name); err != nil {
			return fmt.Errorf("insert wpl_official %s: %w", m.ID, err)
		}
	}
	for _, person := range info.Registry {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO wpl_person_registry (registry_id, person_name) VALUES ($1, $2)
ON CONFLICT (registry_id) DO UPDATE SET person_name = EXCLUDED.person_name`, person.RegistryID, person.Name); err != nil {
			return fmt.Errorf("upsert wpl_person_registry %s: %w", person.RegistryID, err)
		}
	}
	return nil
}

func insertDeliveries(ctx context.Context, tx *sql.Tx, m Match) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO wpl_delivery (
	match_id, innings, delivery_seq, ball, over_number, ball_number, batting_team, bowling_team,
	striker, non_striker, bowler, runs_off_bat, extras, wides, noballs, byes, legbyes, penalty,
	wicket_type, player_dismissed, other_wicket_type, other_player_dismissed
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`)
	if err != nil {
		return fmt.Errorf("prepare wpl_delivery insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range m.Deliveries {
		if _, err := stmt.ExecContext(ctx,
			m.ID, d.Innings, d.Seq, d.Ball.StringFixed(1), d.OverNumber, d.BallNumber, d.BattingTeam, d.BowlingTeam,
			d.Striker, d.NonStriker, d.Bowler, d.RunsOffBat, d.Extras, d.Wides, d.Noballs, d.Byes, d.Legbyes, d.Penalty,
			nullString(d.WicketType), nullString(d.PlayerDismissed), nullString(d.OtherWicketType), nullString(d.OtherPlayerDismissed),
		); err != nil {
			return fmt.Errorf("insert wpl_delivery %s innings %d seq %d: %w", m.ID, d.Innings, d.Seq, err)
		}
	}
	return nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullDate(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.Format("2006-01-02")
}
