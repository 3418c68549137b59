package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/boundarybytes/boundarybytes/internal/storage"
)

// TableWriter receives one CSV export per table.
type TableWriter interface {
	WriteTable(ctx context.Context, table string, data []byte) error
}

// CSVExporter collects matches and writes table-per-CSV exports that the
// DuckDB engine reads as views.
type CSVExporter struct {
	mu       sync.Mutex
	matches  map[string]Match
	registry map[string]string
}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{matches: map[string]Match{}, registry: map[string]string{}}
}

func (e *CSVExporter) LoadMatch(_ context.Context, m Match) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matches[m.ID] = m
	for _, p := range m.Info.Registry {
		e.registry[p.RegistryID] = p.Name
	}
	return nil
}

type exportTable struct {
	name    string
	columns []string
	rows    func(m Match) [][]string
}

var exportTables = []exportTable{
	{
		name:    "wpl_match",
		columns: []string{"match_id", "season", "start_date", "venue", "city", "team1", "team2", "event_name", "match_number"},
		rows: func(m Match) [][]string {
			date := ""
			if !m.StartDate.IsZero() {
				date = m.StartDate.Format("2006-01-02")
			}
			return [][]string{{m.ID, m.Season, date, m.Venue, m.Info.City, m.Info.Teams[0], m.Info.Teams[1], m.Info.Event, optionalInt(m.Info.MatchNumber)}}
		},
	},
	{
		name: "wpl_match_info",
		columns: []string{"match_id", "gender", "balls_per_over", "toss_winner", "toss_decision", "winner", "winner_runs",
			"winner_wickets", "outcome", "eliminator", "method", "player_of_match"},
		rows: func(m Match) [][]string {
			i := m.Info
			return [][]string{{m.ID, i.Gender, strconv.Itoa(i.BallsPerOver), i.TossWinner, i.TossDecision, i.Winner,
				optionalInt(i.WinnerRuns), optionalInt(i.WinnerWickets), i.Outcome, i.Eliminator, i.Method, i.PlayerOfMatch}}
		},
	},
	{
		name: "wpl_delivery",
		columns: []string{"match_id", "innings", "delivery_seq", "ball", "over_number", "ball_number", "batting_team", "bowling_team",
			"striker", "non_striker", "bowler", "runs_off_bat", "extras", "wides", "noballs", "byes", "legbyes", "penalty",
			"wicket_type", "player_dismissed", "other_wicket_type", "other_player_dismissed"},
		rows: func(m Match) [][]string {
			out := make([][]string, 0, len(m.Deliveries))
			for _, d := range m.Deliveries {
				out = append(out, []string{m.ID, strconv.Itoa(d.Innings), strconv.Itoa(d.Seq), d.Ball.StringFixed(1),
					strconv.Itoa(d.OverNumber), strconv.Itoa(d.BallNumber), d.BattingTeam, d.BowlingTeam,
					d.Striker, d.NonStriker, d.Bowler, strconv.Itoa(d.RunsOffBat), strconv.Itoa(d.Extras),
					strconv.Itoa(d.Wides), strconv.Itoa(d.Noballs), strconv.Itoa(d.Byes), strconv.Itoa(d.Legbyes),
					strconv.Itoa(d.Penalty), d.WicketType, d.PlayerDismissed, d.OtherWicketType, d.OtherPlayerDismissed})
			}
			return out
		},
	},
	{
		name:    "wpl_team",
		columns: []string{"match_id", "team_name"},
		rows: func(m Match) [][]string {
			out := make([][]string, 0, len(m.Info.Teams))
			for _, team := range m.Info.Teams {
				out = append(out, []string{m.ID, team})
			}
			return out
		},
	},
	{
		name:    "wpl_player",
		columns: []string{"match_id", "team_name", "player_name"},
		rows: func(m Match) [][]string {
			out := make([][]string, 0, len(m.Info.Players))
			for _, p := range m.Info.Players {
				out = append(out, []string{m.ID, p.Team, p.Name})
			}
			return out
		},
	},
	{
		name:    "wpl_official",
		columns: []string{"match_id", "role", "official_name"},
		rows: func(m Match) [][]string {
			out := make([][]string, 0, len(m.Info.Officials))
			for _, o := range m.Info.Officials {
				out = append(out, []string{m.ID, o.Role, o.Name})
			}
			return out
		},
	},
}

// Export writes every table, including the deduplicated person registry.
func (e *CSVExporter) Export(ctx context.Context, w TableWriter) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.matches))
	for id := range e.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	matches := make([]Match, 0, len(ids))
	for _, id := range ids {
		matches = append(matches, e.matches[id])
	}
	registryIDs := make([]string, 0, len(e.registry))
	for id := range e.registry {
		registryIDs = append(registryIDs, id)
	}
	sort.Strings(registryIDs)
	registry := make([][]string, 0, len(registryIDs))
	for _, id := range registryIDs {
		registry = append(registry, []string{id, e.registry[id]})
	}
	e.mu.Unlock()

	for _, table := range exportTables {
		var rows [][]string
		for _, m := range matches {
			rows = append(rows, table.rows(m)...)
		}
		if err := writeTable(ctx, w, table.name, table.columns, rows); err != nil {
			return err
		}
	}
	return writeTable(ctx, w, "wpl_person_registry", []string{"registry_id", "person_name"}, registry)
}

func writeTable(ctx context.Context, w TableWriter, table string, columns []string, rows [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("encode %s header: %w", table, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("encode %s rows: %w", table, err)
	}
	if err := w.WriteTable(ctx, table, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s export: %w", table, err)
	}
	return nil
}

func optionalInt(value int) string {
	if value == 0 {
		return ""
	}
	return strconv.Itoa(value)
}

// DirTableWriter writes <dir>/<table>.csv files.
type DirTableWriter struct {
	Dir string
}

func (d DirTableWriter) WriteTable(_ context.Context, table string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.Dir, table+".csv"), data, 0o644)
}

// ObjectTableWriter uploads exports to an object store under exports/.
type ObjectTableWriter struct {
	Store storage.ObjectWriter
}

func (o ObjectTableWriter) WriteTable(ctx context.Context, table string, data []byte) error {
	key, err := storage.ExportKey(table)
	if err != nil {
		return err
	}
	_, err = o.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "text/csv"})
	return err
}
