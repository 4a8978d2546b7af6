package game

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
	util "github.com/RomainGaget-hub/foot-challenge/internal/util"
)

// ChallengeSource is the loader contract the session controller consumes.
// Both operations are read-only and idempotent.
type ChallengeSource interface {
	ListChallenges(ctx context.Context) ([]models.ChallengeSummary, error)
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
}

// Session tracks one player's progress: the active challenge, the question
// cursor, per-question attempt counts, solved question ids, and the best
// score ever recorded per challenge. All mutations go through its methods.
//
// Attempts and solved sets are nested per-challenge maps keyed by question
// id, so resetting a challenge is a plain map operation rather than an
// id-prefix scan.
type Session struct {
	mu     sync.RWMutex
	source ChallengeSource

	activeChallengeID string
	questionIndex     int
	attempts          map[string]map[string]int
	solved            map[string]map[string]struct{}
	bestScores        map[string]int
	battleID          string
	runScore          int

	challenges map[string]*models.Challenge
	loading    bool
	loadGen    int
	loadErr    error

	timeLimit       time.Duration
	questionStarted time.Time
	timer           QuestionTimer

	lastAccess time.Time
}

func NewSession(source ChallengeSource) *Session {
	return &Session{
		source:     source,
		attempts:   make(map[string]map[string]int),
		solved:     make(map[string]map[string]struct{}),
		bestScores: make(map[string]int),
		challenges: make(map[string]*models.Challenge),
		timeLimit:  constants.DefaultQuestionTimeLimit,
		lastAccess: time.Now(),
	}
}

func (s *Session) SetTimeLimit(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeLimit = d
}

// StartChallenge makes challengeID the active challenge and wipes its
// previous progress. Calling it again for the same id restarts it, which is
// what Play Again relies on. The challenge data itself is fetched
// asynchronously when not already resident; Loading and LoadError expose the
// in-flight state.
func (s *Session) StartChallenge(ctx context.Context, challengeID string) {
	s.mu.Lock()
	s.activeChallengeID = challengeID
	s.questionIndex = 0
	s.runScore = 0
	s.attempts[challengeID] = make(map[string]int)
	delete(s.solved, challengeID)
	s.questionStarted = time.Now()
	s.lastAccess = time.Now()

	_, resident := s.challenges[challengeID]
	needLoad := !resident
	// Bumping the generation detaches any in-flight load, and a stale error
	// from an earlier challenge never outlives a fresh start.
	s.loadErr = nil
	s.loading = needLoad
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	if needLoad {
		go s.loadChallenge(ctx, challengeID, gen)
	}
}

func (s *Session) loadChallenge(ctx context.Context, challengeID string, gen int) {
	challenge, err := s.source.GetChallenge(ctx, challengeID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.loadGen {
		s.loading = false
		s.loadErr = err
	}
	if err != nil {
		util.LogWarn("Failed to load challenge %s: %v", challengeID, err)
		return
	}
	s.challenges[challengeID] = challenge
	// The countdown starts when the first question is actually visible.
	if s.activeChallengeID == challengeID && s.questionIndex == 0 {
		s.questionStarted = time.Now()
	}
}

// RetryLoad re-requests the active challenge after a failed load. The
// controller never retries on its own; this is the user-triggered retry.
func (s *Session) RetryLoad(ctx context.Context) {
	s.mu.Lock()
	challengeID := s.activeChallengeID
	if challengeID == "" || s.loading {
		s.mu.Unlock()
		return
	}
	if _, resident := s.challenges[challengeID]; resident {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.loadErr = nil
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	go s.loadChallenge(ctx, challengeID, gen)
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Session) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// CurrentChallenge returns nil when no challenge is active or its data has
// not arrived yet.
func (s *Session) CurrentChallenge() *models.Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentChallengeLocked()
}

func (s *Session) currentChallengeLocked() *models.Challenge {
	if s.activeChallengeID == "" {
		return nil
	}
	return s.challenges[s.activeChallengeID]
}

// CurrentQuestion returns nil when idle, still loading, or when the cursor
// has moved past the last question (challenge finished).
func (s *Session) CurrentQuestion() *models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentQuestionLocked()
}

func (s *Session) currentQuestionLocked() *models.Question {
	challenge := s.currentChallengeLocked()
	if challenge == nil || s.questionIndex >= len(challenge.Questions) {
		return nil
	}
	return &challenge.Questions[s.questionIndex]
}

// SubmitAnswer grades raw text against the current question. Every call
// counts as an attempt, correct or not. A correct answer is recorded in the
// solved set; the question cursor is not advanced. With no active question
// this is a silent false, not a fault.
func (s *Session) SubmitAnswer(rawAnswer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	question := s.currentQuestionLocked()
	if question == nil {
		return false
	}

	challengeID := s.activeChallengeID
	if s.attempts[challengeID] == nil {
		s.attempts[challengeID] = make(map[string]int)
	}
	s.attempts[challengeID][question.ID]++
	s.lastAccess = time.Now()

	correct := IsMatch(rawAnswer, question.CorrectAnswer)
	if correct {
		if s.solved[challengeID] == nil {
			s.solved[challengeID] = make(map[string]struct{})
		}
		s.solved[challengeID][question.ID] = struct{}{}
	}
	return correct
}

// RemainingAttempts never goes negative, however many times the cap is hit.
func (s *Session) RemainingAttempts(challengeID, questionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	remaining := constants.MaxAttempts - s.attempts[challengeID][questionID]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NextQuestion advances the cursor. It reports false once the cursor passes
// the last question, leaving it parked at the terminal out-of-bounds index.
func (s *Session) NextQuestion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge := s.currentChallengeLocked()
	if challenge == nil {
		return false
	}

	next := s.questionIndex + 1
	if next >= len(challenge.Questions) {
		s.questionIndex = len(challenge.Questions)
		return false
	}
	s.questionIndex = next
	s.questionStarted = time.Now()
	s.lastAccess = time.Now()
	return true
}

// ExpireQuestion is the timer callback. It consumes the question with no
// score, but only if questionID is still the active question; a timer that
// fires after the player moved on is ignored.
func (s *Session) ExpireQuestion(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	question := s.currentQuestionLocked()
	if question == nil || question.ID != questionID {
		return false
	}

	challenge := s.currentChallengeLocked()
	next := s.questionIndex + 1
	if next >= len(challenge.Questions) {
		s.questionIndex = len(challenge.Questions)
	} else {
		s.questionIndex = next
		s.questionStarted = time.Now()
	}
	return true
}

// ArmQuestionTimer starts the countdown for the current question. Expiry is
// routed through ExpireQuestion, so stale firings are harmless.
func (s *Session) ArmQuestionTimer() {
	s.mu.RLock()
	question := s.currentQuestionLocked()
	limit := s.timeLimit
	s.mu.RUnlock()

	if question == nil || limit <= 0 {
		return
	}
	s.timer.Arm(question.ID, limit, func(questionID string) {
		s.ExpireQuestion(questionID)
	})
}

func (s *Session) CancelQuestionTimer() {
	s.timer.Cancel()
}

// TimerArmedFor reports which question the countdown is running for, empty
// when no timer is armed.
func (s *Session) TimerArmedFor() string {
	return s.timer.ArmedFor()
}

// RemainingTime is how much of the current question's countdown is left.
func (s *Session) RemainingTime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.timeLimit <= 0 {
		return 0
	}
	remaining := s.timeLimit - time.Since(s.questionStarted)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Session) TimeLimit() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeLimit
}

func (s *Session) IsSolved(challengeID, questionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.solved[challengeID][questionID]
	return ok
}

// SolvedQuestions lists the solved question ids for a challenge, ordered for
// stable payloads.
func (s *Session) SolvedQuestions(challengeID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.solved[challengeID]))
	for id := range s.solved[challengeID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddRunScore accumulates the score of the in-progress run.
func (s *Session) AddRunScore(points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runScore += points
}

func (s *Session) RunScore() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runScore
}

// ChallengeScore returns the best score ever recorded for a challenge, 0 if
// it was never completed.
func (s *Session) ChallengeScore(challengeID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bestScores[challengeID]
}

// SetChallengeCompleted records a finished run. The stored best only ever
// goes up.
func (s *Session) SetChallengeCompleted(challengeID string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score > s.bestScores[challengeID] {
		s.bestScores[challengeID] = score
	}
}

// ResetGame returns the session to idle and wipes the previously active
// challenge's attempts and solved entries. Best scores survive resets.
func (s *Session) ResetGame() {
	s.timer.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.activeChallengeID
	s.activeChallengeID = ""
	s.questionIndex = 0
	s.runScore = 0
	s.loadErr = nil
	s.loading = false
	s.loadGen++
	if previous != "" {
		delete(s.solved, previous)
		delete(s.attempts, previous)
	}
	s.lastAccess = time.Now()
}

func (s *Session) StartBattle(battleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battleID = battleID
}

func (s *Session) EndBattle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battleID = ""
}

func (s *Session) BattleID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.battleID
}

func (s *Session) ActiveChallengeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChallengeID
}

func (s *Session) QuestionIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionIndex
}

func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
}

func (s *Session) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// sessionSnapshot is the durable subset of session state. Field names match
// the storage blob of the original client.
type sessionSnapshot struct {
	CurrentChallengeID   string                    `json:"currentChallengeId"`
	CurrentQuestionIndex int                       `json:"currentQuestionIndex"`
	ChallengeAttempts    map[string]map[string]int `json:"challengeAttempts"`
	CorrectAnswers       map[string][]string       `json:"correctAnswers"`
	ChallengeScores      map[string]int            `json:"challengeScores"`
	CurrentBattleID      string                    `json:"currentBattleId"`
}

// Snapshot serializes the durable session state. Persistence is a
// convenience for resuming, not a correctness requirement.
func (s *Session) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := sessionSnapshot{
		CurrentChallengeID:   s.activeChallengeID,
		CurrentQuestionIndex: s.questionIndex,
		ChallengeAttempts:    make(map[string]map[string]int, len(s.attempts)),
		CorrectAnswers:       make(map[string][]string, len(s.solved)),
		ChallengeScores:      make(map[string]int, len(s.bestScores)),
		CurrentBattleID:      s.battleID,
	}
	for challengeID, byQuestion := range s.attempts {
		counts := make(map[string]int, len(byQuestion))
		for questionID, n := range byQuestion {
			counts[questionID] = n
		}
		snap.ChallengeAttempts[challengeID] = counts
	}
	for challengeID, byQuestion := range s.solved {
		ids := make([]string, 0, len(byQuestion))
		for questionID := range byQuestion {
			ids = append(ids, questionID)
		}
		sort.Strings(ids)
		snap.CorrectAnswers[challengeID] = ids
	}
	for challengeID, score := range s.bestScores {
		snap.ChallengeScores[challengeID] = score
	}
	return json.Marshal(snap)
}

// RestoreSnapshot installs previously serialized state. Challenge data is
// not part of the snapshot and is re-fetched on the next StartChallenge.
func (s *Session) RestoreSnapshot(data []byte) error {
	var snap sessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeChallengeID = snap.CurrentChallengeID
	s.questionIndex = snap.CurrentQuestionIndex
	s.battleID = snap.CurrentBattleID
	s.attempts = make(map[string]map[string]int, len(snap.ChallengeAttempts))
	for challengeID, byQuestion := range snap.ChallengeAttempts {
		counts := make(map[string]int, len(byQuestion))
		for questionID, n := range byQuestion {
			counts[questionID] = n
		}
		s.attempts[challengeID] = counts
	}
	s.solved = make(map[string]map[string]struct{}, len(snap.CorrectAnswers))
	for challengeID, ids := range snap.CorrectAnswers {
		set := make(map[string]struct{}, len(ids))
		for _, questionID := range ids {
			set[questionID] = struct{}{}
		}
		s.solved[challengeID] = set
	}
	s.bestScores = make(map[string]int, len(snap.ChallengeScores))
	for challengeID, score := range snap.ChallengeScores {
		s.bestScores[challengeID] = score
	}
	// The countdown restarts for whatever question is current after restore.
	s.questionStarted = time.Now()
	return nil
}
