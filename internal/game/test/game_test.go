package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
	game "github.com/RomainGaget-hub/foot-challenge/internal/game"
	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
)

// fixtureSource serves a static dataset, standing in for the networked
// loader.
type fixtureSource struct {
	challenges map[string]*models.Challenge
}

func (f *fixtureSource) ListChallenges(_ context.Context) ([]models.ChallengeSummary, error) {
	var summaries []models.ChallengeSummary
	for _, c := range f.challenges {
		summaries = append(summaries, c.Summary())
	}
	return summaries, nil
}

func (f *fixtureSource) GetChallenge(_ context.Context, id string) (*models.Challenge, error) {
	c, ok := f.challenges[id]
	if !ok {
		return nil, models.ErrChallengeNotFound
	}
	return c, nil
}

func fixtureChallenge(id string, questionCount int) *models.Challenge {
	c := &models.Challenge{
		ID:         id,
		Type:       constants.ChallengeTypeClubJourneyman,
		Name:       "Club Journeyman",
		Difficulty: 2,
	}
	for i := 1; i <= questionCount; i++ {
		c.Questions = append(c.Questions, models.Question{
			ID:            fmt.Sprintf("%s-%d", id, i),
			CorrectAnswer: fmt.Sprintf("Test Player%d", i),
			Points:        10,
			Clue:          models.Clue{Kind: models.ClueKindTeams, Teams: []string{"Chelsea", "Real Madrid"}},
		})
	}
	return c
}

func newTestSession(challenges ...*models.Challenge) *game.Session {
	source := &fixtureSource{challenges: make(map[string]*models.Challenge)}
	for _, c := range challenges {
		source.challenges[c.ID] = c
	}
	return game.NewSession(source)
}

func startAndWait(t *testing.T, s *game.Session, challengeID string) {
	t.Helper()
	s.StartChallenge(context.Background(), challengeID)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.CurrentChallenge() != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("challenge %s did not load", challengeID)
}

func TestIsMatch(t *testing.T) {
	cases := []struct {
		user      string
		canonical string
		want      bool
	}{
		{"ronaldo", "Cristiano Ronaldo", true},
		{"Hazard", "Eden Hazard", true},
		{"mbappe", "Mbappé", true},
		{"suarez!", "Luis Suárez", true},
		{"messi", "Cristiano Ronaldo", false},
		{"Eden Hazard", "Eden Hazard", true},
		{"  eden hazard  ", "Eden Hazard", true},
		{"eto'o", "Samuel Eto'o", true},
		{"heung-min", "Son Heung-min", true},
		{"", "Eden Hazard", false},
	}
	for _, c := range cases {
		if got := game.IsMatch(c.user, c.canonical); got != c.want {
			t.Errorf("IsMatch(%q, %q) = %v, want %v", c.user, c.canonical, got, c.want)
		}
	}
}

func TestNormalizeAnswer(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Mbappé", "mbappe"},
		{"  Luis Suárez! ", "luis suarez"},
		{"SON HEUNG-MIN", "son heungmin"},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := game.NormalizeAnswer(c.in); got != c.want {
			t.Errorf("NormalizeAnswer(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestQuestionScore(t *testing.T) {
	limit := 30 * time.Second
	if got := game.QuestionScore(10, limit, limit); got != 20 {
		t.Errorf("full time bonus: got %d, want 20", got)
	}
	if got := game.QuestionScore(10, 0, limit); got != 10 {
		t.Errorf("no time left: got %d, want 10", got)
	}
	if got := game.QuestionScore(10, 15*time.Second, limit); got != 15 {
		t.Errorf("half time: got %d, want 15", got)
	}
	if got := game.QuestionScore(10, time.Minute, limit); got != 20 {
		t.Errorf("remaining above limit must clamp: got %d, want 20", got)
	}
	if got := game.QuestionScore(10, time.Second, 0); got != 10 {
		t.Errorf("zero limit: got %d, want 10", got)
	}
}

func TestAttemptCap(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 5))
	startAndWait(t, sess, "1")

	question := sess.CurrentQuestion()
	if question == nil {
		t.Fatal("expected a current question")
	}
	for i := 0; i < 3; i++ {
		sess.SubmitAnswer("wrong answer")
	}
	if got := sess.RemainingAttempts("1", question.ID); got != 0 {
		t.Errorf("after 3 attempts remaining = %d, want 0", got)
	}
	sess.SubmitAnswer("still wrong")
	if got := sess.RemainingAttempts("1", question.ID); got != 0 {
		t.Errorf("remaining attempts went negative: %d", got)
	}
}

func TestEveryCallCountsAsAttempt(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 5))
	startAndWait(t, sess, "1")

	if !sess.SubmitAnswer("Test Player1") {
		t.Fatal("correct answer graded as wrong")
	}
	if got := sess.RemainingAttempts("1", "1-1"); got != 2 {
		t.Errorf("correct answer must still consume an attempt: remaining = %d, want 2", got)
	}
	// Answering the same question again is a set no-op for solved state.
	sess.SubmitAnswer("Test Player1")
	if got := sess.SolvedQuestions("1"); len(got) != 1 || got[0] != "1-1" {
		t.Errorf("solved = %v, want [1-1]", got)
	}
}

func TestBestScoreMonotonicity(t *testing.T) {
	sess := newTestSession()
	sess.SetChallengeCompleted("1", 40)
	sess.SetChallengeCompleted("1", 25)
	if got := sess.ChallengeScore("1"); got != 40 {
		t.Errorf("best score = %d, want 40", got)
	}
	sess.SetChallengeCompleted("1", 55)
	if got := sess.ChallengeScore("1"); got != 55 {
		t.Errorf("best score = %d, want 55", got)
	}
	if got := sess.ChallengeScore("unknown"); got != 0 {
		t.Errorf("unknown challenge score = %d, want 0", got)
	}
}

func TestStartChallengeResetsProgress(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 5))
	startAndWait(t, sess, "1")

	sess.SubmitAnswer("Test Player1")
	sess.NextQuestion()
	if got := sess.QuestionIndex(); got != 1 {
		t.Fatalf("question index = %d, want 1", got)
	}

	// Play Again: restarting the same challenge wipes its progress.
	startAndWait(t, sess, "1")
	if got := sess.QuestionIndex(); got != 0 {
		t.Errorf("question index after restart = %d, want 0", got)
	}
	if got := sess.SolvedQuestions("1"); len(got) != 0 {
		t.Errorf("solved after restart = %v, want empty", got)
	}
	if got := sess.RemainingAttempts("1", "1-1"); got != 3 {
		t.Errorf("remaining attempts after restart = %d, want 3", got)
	}
}

func TestResetIsolation(t *testing.T) {
	sess := newTestSession(fixtureChallenge("A", 3), fixtureChallenge("B", 3))

	startAndWait(t, sess, "A")
	sess.SubmitAnswer("Test Player1")
	sess.SetChallengeCompleted("A", 30)

	startAndWait(t, sess, "B")
	sess.SubmitAnswer("Test Player1")
	sess.ResetGame()

	if got := sess.ActiveChallengeID(); got != "" {
		t.Errorf("active challenge after reset = %q, want empty", got)
	}
	if got := sess.SolvedQuestions("B"); len(got) != 0 {
		t.Errorf("solved for reset challenge = %v, want empty", got)
	}
	if got := sess.ChallengeScore("A"); got != 30 {
		t.Errorf("best score for A after reset = %d, want 30", got)
	}

	// A fresh start of A must not resurrect its earlier solved entries.
	startAndWait(t, sess, "A")
	if got := sess.SolvedQuestions("A"); len(got) != 0 {
		t.Errorf("solved for A after restart = %v, want empty", got)
	}
	if got := sess.ChallengeScore("A"); got != 30 {
		t.Errorf("best score for A after restart = %d, want 30", got)
	}
}

func TestQuestionProgression(t *testing.T) {
	const n = 5
	sess := newTestSession(fixtureChallenge("1", n))
	startAndWait(t, sess, "1")

	for i := 0; i < n-1; i++ {
		if !sess.NextQuestion() {
			t.Fatalf("NextQuestion returned false at step %d", i)
		}
	}
	if sess.CurrentQuestion() == nil {
		t.Fatal("expected last question to be current")
	}
	if sess.NextQuestion() {
		t.Error("NextQuestion past the last question must return false")
	}
	if sess.CurrentQuestion() != nil {
		t.Error("expected no current question after the challenge finished")
	}
	// Repeated calls stay terminal.
	if sess.NextQuestion() {
		t.Error("NextQuestion at terminal index must keep returning false")
	}
}

func TestSubmitAnswerWithoutActiveQuestion(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 1))
	if sess.SubmitAnswer("anything") {
		t.Error("idle session must grade false, not fault")
	}

	startAndWait(t, sess, "1")
	sess.NextQuestion()
	if sess.SubmitAnswer("Test Player1") {
		t.Error("finished challenge must grade false")
	}
	if sess.CurrentQuestion() != nil {
		t.Error("session must stay terminal")
	}
}

func TestEndToEndScenario(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 5))
	startAndWait(t, sess, "1")

	totalScore := 0
	for i := 1; i <= 5; i++ {
		question := sess.CurrentQuestion()
		if question == nil {
			t.Fatalf("no question at step %d", i)
		}
		if !sess.SubmitAnswer(question.CorrectAnswer) {
			t.Fatalf("correct answer rejected at step %d", i)
		}
		totalScore += question.Points
		advanced := sess.NextQuestion()
		if i < 5 && !advanced {
			t.Fatalf("NextQuestion returned false at step %d", i)
		}
		if i == 5 && advanced {
			t.Fatal("NextQuestion must report completion after the last question")
		}
	}

	solved := sess.SolvedQuestions("1")
	if len(solved) != 5 || solved[0] != "1-1" {
		t.Errorf("solved = %v, want all five questions", solved)
	}

	sess.SetChallengeCompleted("1", totalScore)
	if got := sess.ChallengeScore("1"); got != totalScore {
		t.Errorf("challenge score = %d, want %d", got, totalScore)
	}
}

func TestLoadErrorSurfaced(t *testing.T) {
	sess := newTestSession()
	sess.StartChallenge(context.Background(), "missing")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !sess.Loading() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if sess.Loading() {
		t.Fatal("load never settled")
	}
	if sess.LoadError() == nil {
		t.Error("expected a load error for an unknown challenge")
	}
	if sess.CurrentChallenge() != nil {
		t.Error("failed load must leave no current challenge")
	}
}

func waitLoadSettled(t *testing.T, s *game.Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !s.Loading() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("load never settled")
}

func TestStartClearsStaleLoadError(t *testing.T) {
	sess := newTestSession(fixtureChallenge("A", 2))
	startAndWait(t, sess, "A")

	sess.StartChallenge(context.Background(), "missing")
	waitLoadSettled(t, sess)
	if sess.LoadError() == nil {
		t.Fatal("expected a load error for an unknown challenge")
	}

	// A is already resident, so this start completes synchronously and the
	// failed load must not bleed into it.
	sess.StartChallenge(context.Background(), "A")
	if err := sess.LoadError(); err != nil {
		t.Errorf("stale load error survived a fresh start: %v", err)
	}
	if sess.Loading() {
		t.Error("resident challenge must not report loading")
	}
	if sess.CurrentQuestion() == nil {
		t.Error("expected the resident challenge to be playable")
	}
}

func TestResetClearsLoadError(t *testing.T) {
	sess := newTestSession()
	sess.StartChallenge(context.Background(), "missing")
	waitLoadSettled(t, sess)
	if sess.LoadError() == nil {
		t.Fatal("expected a load error for an unknown challenge")
	}

	sess.ResetGame()
	if err := sess.LoadError(); err != nil {
		t.Errorf("load error survived a reset: %v", err)
	}
	if sess.Loading() {
		t.Error("reset session must not report loading")
	}
}

func TestRestoreRestartsCountdown(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 3))
	startAndWait(t, sess, "1")

	blob, err := sess.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored := newTestSession(fixtureChallenge("1", 3))
	if err := restored.RestoreSnapshot(blob); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}
	if got := restored.RemainingTime(); got <= 0 {
		t.Errorf("remaining time after restore = %v, want a running countdown", got)
	}
}

func TestExpireQuestionGuard(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 3))
	startAndWait(t, sess, "1")

	// A timer that fires for a question that is no longer active is ignored.
	if sess.ExpireQuestion("1-2") {
		t.Error("stale expiry must be ignored")
	}
	if got := sess.QuestionIndex(); got != 0 {
		t.Errorf("question index = %d, want 0", got)
	}

	if !sess.ExpireQuestion("1-1") {
		t.Error("expiry for the active question must consume it")
	}
	if got := sess.QuestionIndex(); got != 1 {
		t.Errorf("question index after expiry = %d, want 1", got)
	}
}

func TestQuestionTimerAdvances(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 3))
	sess.SetTimeLimit(30 * time.Millisecond)
	startAndWait(t, sess, "1")

	sess.ArmQuestionTimer()
	if got := sess.TimerArmedFor(); got != "1-1" {
		t.Fatalf("timer armed for %q, want 1-1", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.QuestionIndex() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := sess.QuestionIndex(); got != 1 {
		t.Errorf("question index after timeout = %d, want 1", got)
	}
}

func TestQuestionTimerCancel(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 3))
	sess.SetTimeLimit(30 * time.Millisecond)
	startAndWait(t, sess, "1")

	sess.ArmQuestionTimer()
	sess.CancelQuestionTimer()
	time.Sleep(80 * time.Millisecond)
	if got := sess.QuestionIndex(); got != 0 {
		t.Errorf("cancelled timer still advanced the question: index = %d", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	sess := newTestSession(fixtureChallenge("1", 5))
	startAndWait(t, sess, "1")
	sess.SubmitAnswer("Test Player1")
	sess.SubmitAnswer("wrong")
	sess.NextQuestion()
	sess.SetChallengeCompleted("2", 77)
	sess.StartBattle("battle-9")

	blob, err := sess.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored := newTestSession(fixtureChallenge("1", 5))
	if err := restored.RestoreSnapshot(blob); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}

	if got := restored.ActiveChallengeID(); got != "1" {
		t.Errorf("restored challenge id = %q, want 1", got)
	}
	if got := restored.QuestionIndex(); got != 1 {
		t.Errorf("restored question index = %d, want 1", got)
	}
	if got := restored.RemainingAttempts("1", "1-1"); got != 1 {
		t.Errorf("restored remaining attempts = %d, want 1", got)
	}
	if !restored.IsSolved("1", "1-1") {
		t.Error("restored session lost a solved question")
	}
	if got := restored.ChallengeScore("2"); got != 77 {
		t.Errorf("restored best score = %d, want 77", got)
	}
	if got := restored.BattleID(); got != "battle-9" {
		t.Errorf("restored battle id = %q, want battle-9", got)
	}
}
