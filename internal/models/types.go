package models

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
)

// ClueKind discriminates the two question clue shapes. Exactly one shape is
// populated per question, decided by the challenge type at load time.
type ClueKind string

const (
	ClueKindTeams  ClueKind = "teams"
	ClueKindCareer ClueKind = "career"
)

// Clue is the tagged union of question hints shown to the player: either the
// list of clubs a player appeared for, or a (club, nationality) pair.
type Clue struct {
	Kind        ClueKind `json:"-"`
	Teams       []string `json:"teams,omitempty"`
	Club        string   `json:"club,omitempty"`
	Nationality string   `json:"nationality,omitempty"`
}

type Question struct {
	ID            string `json:"id"`
	CorrectAnswer string `json:"correctAnswer"`
	Points        int    `json:"points"`
	Hint          string `json:"hint,omitempty"`
	Clue          Clue   `json:"-"`
}

// questionWire is the flat JSON shape of the public API: clue fields sit
// directly on the question object.
type questionWire struct {
	ID            string   `json:"id"`
	CorrectAnswer string   `json:"correctAnswer"`
	Points        int      `json:"points"`
	Hint          string   `json:"hint,omitempty"`
	Teams         []string `json:"teams,omitempty"`
	Club          string   `json:"club,omitempty"`
	Nationality   string   `json:"nationality,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := questionWire{
		ID:            q.ID,
		CorrectAnswer: q.CorrectAnswer,
		Points:        q.Points,
		Hint:          q.Hint,
	}
	switch q.Clue.Kind {
	case ClueKindTeams:
		w.Teams = q.Clue.Teams
	case ClueKindCareer:
		w.Club = q.Clue.Club
		w.Nationality = q.Clue.Nationality
	}
	return json.Marshal(w)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	q.ID = w.ID
	q.CorrectAnswer = w.CorrectAnswer
	q.Points = w.Points
	q.Hint = w.Hint
	switch {
	case len(w.Teams) > 0:
		q.Clue = Clue{Kind: ClueKindTeams, Teams: w.Teams}
	case w.Club != "" || w.Nationality != "":
		q.Clue = Clue{Kind: ClueKindCareer, Club: w.Club, Nationality: w.Nationality}
	default:
		q.Clue = Clue{}
	}
	return nil
}

// ResolveClueKind returns the clue shape a challenge type implies.
func ResolveClueKind(challengeType string) (ClueKind, error) {
	switch challengeType {
	case constants.ChallengeTypeClubJourneyman, constants.ChallengeTypeTwoClubLegend:
		return ClueKindTeams, nil
	case constants.ChallengeTypeNationalTeamStar:
		return ClueKindCareer, nil
	default:
		return "", fmt.Errorf("unknown challenge type %q", challengeType)
	}
}

type Challenge struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Questions       []Question `json:"questions"`
	Difficulty      int        `json:"difficulty"`
	BackgroundImage string     `json:"backgroundImage"`
}

// TotalPoints sums the point values of every question.
func (c *Challenge) TotalPoints() int {
	total := 0
	for _, q := range c.Questions {
		total += q.Points
	}
	return total
}

// Summary projects the challenge into its list-endpoint shape.
func (c *Challenge) Summary() ChallengeSummary {
	return ChallengeSummary{
		ID:              c.ID,
		Type:            c.Type,
		Name:            c.Name,
		Description:     c.Description,
		Difficulty:      c.Difficulty,
		BackgroundImage: c.BackgroundImage,
		TotalPoints:     c.TotalPoints(),
		TotalQuestions:  len(c.Questions),
	}
}

// ChallengeSummary is the list-endpoint projection. TotalPoints and
// TotalQuestions are derived from the question set, never stored.
type ChallengeSummary struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Difficulty      int    `json:"difficulty"`
	BackgroundImage string `json:"backgroundImage"`
	TotalPoints     int    `json:"totalPoints"`
	TotalQuestions  int    `json:"totalQuestions"`
}

type User struct {
	ID                  string `json:"id"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	Points              int    `json:"points"`
	ChallengesCompleted int    `json:"challengesCompleted"`
	BattlesWon          int    `json:"battlesWon"`
	BattlesLost         int    `json:"battlesLost"`
}

type Battle struct {
	ID           string  `json:"id"`
	ChallengeID  string  `json:"challengeId"`
	Player1ID    string  `json:"player1Id"`
	Player2ID    string  `json:"player2Id,omitempty"`
	Player1Score int     `json:"player1Score"`
	Player2Score int     `json:"player2Score"`
	Status       string  `json:"status"`
	WinnerID     *string `json:"winnerId"`
}

// RateLimiterEntry tracks a per-client limiter and when it was last used so
// stale entries can be evicted.
type RateLimiterEntry struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

// App carries process-wide wiring shared by handlers and middleware.
type App struct {
	IsProduction   bool
	StartTime      time.Time
	CookieMaxAge   time.Duration
	StaticCacheAge time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
	SessionTTL     time.Duration
	QuestionTime   time.Duration
	BaseURL        string

	LimiterMap   map[string]*RateLimiterEntry
	LimiterMutex sync.RWMutex
}
