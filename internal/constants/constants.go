package constants

import "time"

const (
	// MaxAttempts is the fixed per-question attempt cap.
	MaxAttempts = 3

	// DefaultQuestionTimeLimit is the countdown per question.
	DefaultQuestionTimeLimit = 30 * time.Second

	// MaxTimeBonus is the cap on bonus points for a fast answer.
	MaxTimeBonus = 10
)

const (
	ChallengeTypeClubJourneyman   = "Club Journeyman"
	ChallengeTypeNationalTeamStar = "National Team Star"
	ChallengeTypeTwoClubLegend    = "Two-Club Legend"
)

const (
	BattleStatusPending    = "PENDING"
	BattleStatusInProgress = "IN_PROGRESS"
	BattleStatusCompleted  = "COMPLETED"
)

const (
	SessionCookieName = "session_id"
)

const (
	RouteChallenges    = "/challenges"
	RouteChallengeByID = "/challenges/:id"
	RouteLeaderboard   = "/leaderboard"
	RouteGameStart     = "/game/start"
	RouteGameState     = "/game/state"
	RouteGameAnswer    = "/game/answer"
	RouteGameNext      = "/game/next"
	RouteGameComplete  = "/game/complete"
	RouteGameReset     = "/game/reset"
	RouteGameRetry     = "/game/retry"
	RouteBattles       = "/battles"
	RouteBattleByID    = "/battles/:id"
	RouteBattleQR      = "/battles/:id/qr"
	RouteBattleWS      = "/battles/:id/ws"
	RouteHealthz       = "/healthz"
)

const (
	ErrorCodeChallengeNotFound = "challenge_not_found"
	ErrorCodeBattleNotFound    = "battle_not_found"
	ErrorCodeNoActiveChallenge = "no_active_challenge"
	ErrorCodeNoActiveQuestion  = "no_active_question"
	ErrorCodeEmptyAnswer       = "empty_answer"
	ErrorCodeNoMoreAttempts    = "no_more_attempts"
	ErrorCodeChallengeLoading  = "challenge_loading"
	ErrorCodeLoadFailed        = "load_failed"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
)
