// Package ingest loads Cricsheet WPL match files into the statistics store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMalformedMatch = errors.New("malformed match file")

type Delivery struct {
	Innings              int
	Seq                  int
	Ball                 decimal.Decimal
	OverNumber           int
	BallNumber           int
	BattingTeam          string
	BowlingTeam          string
	Striker              string
	NonStriker           string
	Bowler               string
	RunsOffBat           int
	Extras               int
	Wides                int
	Noballs              int
	Byes                 int
	Legbyes              int
	Penalty              int
	WicketType           string
	PlayerDismissed      string
	OtherWicketType      string
	OtherPlayerDismissed string
}

type Player struct {
	Team string
	Name string
}

type Official struct {
	Role string
	Name string
}

type Person struct {
	RegistryID string
	Name       string
}

// Info is the content of a <match>_info.csv file.
type Info struct {
	Season        string
	Date          time.Time
	Venue         string
	City          string
	Event         string
	MatchNumber   int
	Gender        string
	BallsPerOver  int
	TossWinner    string
	TossDecision  string
	Winner        string
	WinnerRuns    int
	WinnerWickets int
	Outcome       string
	Eliminator    string
	Method        string
	PlayerOfMatch string
	Teams         []string
	Players       []Player
	Officials     []Official
	Registry      []Person
}

// Match is everything stored for one fixture.
type Match struct {
	ID         string
	Season     string
	StartDate  time.Time
	Venue      string
	Info       Info
	Deliveries []Delivery
}

var deliveryColumns = []string{
	"match_id", "season", "start_date", "venue", "innings", "ball", "batting_team", "bowling_team",
	"striker", "non_striker", "bowler", "runs_off_bat", "extras", "wides", "noballs", "byes",
	"legbyes", "penalty", "wicket_type", "player_dismissed", "other_wicket_type", "other_player_dismissed",
}

var officialRoles = map[string]struct{}{
	"umpire":         {},
	"tv_umpire":      {},
	"reserve_umpire": {},
	"match_referee":  {},
}

// DeliveryFile is the content of a <match>.csv ball-by-ball file.
type DeliveryFile struct {
	Season     string
	StartDate  string
	Venue      string
	Deliveries []Delivery
}

// ParseDeliveries reads a ball-by-ball CSV. Rows for other matches are rejected.
func ParseDeliveries(r io.Reader, matchID string) (DeliveryFile, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return DeliveryFile{}, fmt.Errorf("%w: read header: %v", ErrMalformedMatch, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, column := range deliveryColumns {
		if _, ok := index[column]; !ok {
			return DeliveryFile{}, fmt.Errorf("%w: missing column %q", ErrMalformedMatch, column)
		}
	}

	out := DeliveryFile{Deliveries: make([]Delivery, 0, 256)}
	seqs := map[int]int{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return DeliveryFile{}, fmt.Errorf("%w: line %d: %v", ErrMalformedMatch, line, err)
		}
		field := func(name string) string {
			return strings.TrimSpace(record[index[name]])
		}
		if id := field("match_id"); id != matchID {
			return DeliveryFile{}, fmt.Errorf("%w: line %d: match id %q, want %q", ErrMalformedMatch, line, id, matchID)
		}
		if out.Season == "" {
			out.Season, out.StartDate, out.Venue = field("season"), field("start_date"), field("venue")
		}

		d, err := parseDelivery(field)
		if err != nil {
			return DeliveryFile{}, fmt.Errorf("%w: line %d: %v", ErrMalformedMatch, line, err)
		}
		seqs[d.Innings]++
		d.Seq = seqs[d.Innings]
		out.Deliveries = append(out.Deliveries, d)
	}
	if len(out.Deliveries) == 0 {
		return DeliveryFile{}, fmt.Errorf("%w: no deliveries", ErrMalformedMatch)
	}
	return out, nil
}

func parseDelivery(field func(string) string) (Delivery, error) {
	innings, err := atoi(field("innings"), "innings")
	if err != nil {
		return Delivery{}, err
	}
	ball, over, number, err := parseBall(field("ball"))
	if err != nil {
		return Delivery{}, err
	}
	d := Delivery{
		Innings:              innings,
		Ball:                 ball,
		OverNumber:           over,
		BallNumber:           number,
		BattingTeam:          field("batting_team"),
		BowlingTeam:          field("bowling_team"),
		Striker:              field("striker"),
		NonStriker:           field("non_striker"),
		Bowler:               field("bowler"),
		WicketType:           field("wicket_type"),
		PlayerDismissed:      field("player_dismissed"),
		OtherWicketType:      field("other_wicket_type"),
		OtherPlayerDismissed: field("other_player_dismissed"),
	}
	if d.Striker == "" || d.Bowler == "" {
		return Delivery{}, errors.New("striker and bowler are required")
	}
	counts := []struct {
		name string
		dst  *int
	}{
		{"runs_off_bat", &d.RunsOffBat},
		{"extras", &d.Extras},
		{"wides", &d.Wides},
		{"noballs", &d.Noballs},
		{"byes", &d.Byes},
		{"legbyes", &d.Legbyes},
		{"penalty", &d.Penalty},
	}
	for _, c := range counts {
		if *c.dst, err = atoi(field(c.name), c.name); err != nil {
			return Delivery{}, err
		}
	}
	return d, nil
}

// parseBall splits "12.3" into over 12 and ball 3. The over part is zero based
// and the ball part may exceed six when extras are bowled.
func parseBall(raw string) (decimal.Decimal, int, int, error) {
	overPart, ballPart, ok := strings.Cut(raw, ".")
	if !ok {
		return decimal.Decimal{}, 0, 0, fmt.Errorf("invalid ball %q", raw)
	}
	over, err := strconv.Atoi(overPart)
	if err != nil || over < 0 {
		return decimal.Decimal{}, 0, 0, fmt.Errorf("invalid ball %q", raw)
	}
	number, err := strconv.Atoi(ballPart)
	if err != nil || number < 0 {
		return decimal.Decimal{}, 0, 0, fmt.Errorf("invalid ball %q", raw)
	}
	ball, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, 0, 0, fmt.Errorf("invalid ball %q: %w", raw, err)
	}
	return ball.Round(1), over, number, nil
}

// atoi treats an empty cell as zero.
func atoi(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// ParseInfo reads a <match>_info.csv file of version, info and registry lines.
func ParseInfo(r io.Reader) (Info, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	info := Info{BallsPerOver: 6}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Info{}, fmt.Errorf("%w: info line %d: %v", ErrMalformedMatch, line, err)
		}
		if len(record) < 3 || strings.TrimSpace(record[0]) != "info" {
			continue
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if err := info.apply(record[1], record[2:]); err != nil {
			return Info{}, fmt.Errorf("%w: info line %d: %v", ErrMalformedMatch, line, err)
		}
	}
	if len(info.Teams) < 2 {
		return Info{}, fmt.Errorf("%w: expected two teams, got %d", ErrMalformedMatch, len(info.Teams))
	}
	return info, nil
}

func (i *Info) apply(key string, values []string) error {
	value := values[0]
	var err error
	switch key {
	case "team":
		i.Teams = append(i.Teams, value)
	case "season":
		i.Season = value
	case "date":
		if i.Date.IsZero() {
			i.Date, err = parseDate(value)
		}
	case "venue":
		i.Venue = value
	case "city":
		i.City = value
	case "event":
		i.Event = value
	case "match_number":
		i.MatchNumber, err = atoi(value, key)
	case "gender":
		i.Gender = value
	case "balls_per_over":
		i.BallsPerOver, err = atoi(value, key)
	case "toss_winner":
		i.TossWinner = value
	case "toss_decision":
		i.TossDecision = value
	case "winner":
		i.Winner = value
	case "winner_runs":
		i.WinnerRuns, err = atoi(value, key)
	case "winner_wickets":
		i.WinnerWickets, err = atoi(value, key)
	case "outcome":
		i.Outcome = value
	case "eliminator":
		i.Eliminator = value
	case "method":
		i.Method = value
	case "player_of_match":
		i.PlayerOfMatch = value
	case "player":
		if len(values) < 2 {
			return errors.New("player line needs team and name")
		}
		i.Players = append(i.Players, Player{Team: values[0], Name: values[1]})
	case "registry":
		if len(values) < 3 || values[0] != "people" {
			return nil
		}
		i.Registry = append(i.Registry, Person{Name: values[1], RegistryID: values[2]})
	default:
		if _, ok := officialRoles[key]; ok {
			i.Officials = append(i.Officials, Official{Role: key, Name: value})
		}
	}
	return err
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006/01/02", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// BuildMatch combines both files of a fixture. Ball-by-ball values win over
// info values for season, date and venue.
func BuildMatch(id string, file DeliveryFile, info Info) (Match, error) {
	m := Match{ID: id, Season: file.Season, Venue: file.Venue, Info: info, Deliveries: file.Deliveries}
	if m.Season == "" {
		m.Season = info.Season
	}
	if m.Venue == "" {
		m.Venue = info.Venue
	}
	if file.StartDate != "" {
		date, err := parseDate(file.StartDate)
		if err != nil {
			return Match{}, fmt.Errorf("%w: %v", ErrMalformedMatch, err)
		}
		m.StartDate = date
	} else {
		m.StartDate = info.Date
	}
	if m.Season == "" {
		return Match{}, fmt.Errorf("%w: season is required", ErrMalformedMatch)
	}
	return m, nil
}
