package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/skip2/go-qrcode"

	battle "github.com/RomainGaget-hub/foot-challenge/internal/battle"
	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
	game "github.com/RomainGaget-hub/foot-challenge/internal/game"
	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
	session "github.com/RomainGaget-hub/foot-challenge/internal/session"
	store "github.com/RomainGaget-hub/foot-challenge/internal/store"
	util "github.com/RomainGaget-hub/foot-challenge/internal/util"
)

// API bundles the handler dependencies.
type API struct {
	App      *models.App
	Store    *store.Store
	Sessions *session.Registry
	Battles  *battle.Manager
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (a *API) ListChallenges(c *gin.Context) {
	summaries, err := a.Store.ListChallengeSummaries(c.Request.Context())
	if err != nil {
		util.LogWarn("Failed to list challenges: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch challenges"})
		return
	}
	if summaries == nil {
		summaries = []models.ChallengeSummary{}
	}
	c.JSON(http.StatusOK, summaries)
}

func (a *API) GetChallenge(c *gin.Context) {
	challenge, err := a.Store.GetChallenge(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrChallengeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Challenge not found"})
		return
	}
	if err != nil {
		util.LogWarn("Failed to fetch challenge %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch challenge"})
		return
	}
	c.JSON(http.StatusOK, challenge)
}

func (a *API) Leaderboard(c *gin.Context) {
	users, err := a.Store.ListUsersByPoints(c.Request.Context())
	if err != nil {
		util.LogWarn("Failed to fetch leaderboard: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leaderboard"})
		return
	}
	ranked := lo.Map(users, func(u models.User, i int) gin.H {
		return gin.H{
			"rank":                i + 1,
			"id":                  u.ID,
			"username":            u.Username,
			"points":              u.Points,
			"challengesCompleted": u.ChallengesCompleted,
			"battlesWon":          u.BattlesWon,
			"battlesLost":         u.BattlesLost,
		}
	})
	c.JSON(http.StatusOK, ranked)
}

type startGameRequest struct {
	ChallengeID string `json:"challengeId" binding:"required"`
}

func (a *API) StartGame(c *gin.Context) {
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "challengeId is required"})
		return
	}

	sessionID := a.Sessions.GetOrCreateSessionID(c)
	sess := a.Sessions.Get(c.Request.Context(), sessionID)

	// The load outlives this request, so it runs on its own context.
	sess.StartChallenge(context.Background(), req.ChallengeID)
	sess.ArmQuestionTimer()
	a.Sessions.Save(c.Request.Context(), sessionID, sess)

	util.LogRequest(c.Request.Context(), "Session %s started challenge %s", sessionID, req.ChallengeID)
	c.JSON(http.StatusOK, gin.H{
		"challengeId": req.ChallengeID,
		"loading":     sess.Loading(),
	})
}

func (a *API) GameState(c *gin.Context) {
	sessionID := a.Sessions.GetOrCreateSessionID(c)
	sess := a.Sessions.Get(c.Request.Context(), sessionID)

	challengeID := sess.ActiveChallengeID()
	state := gin.H{
		"challengeId":   challengeID,
		"questionIndex": sess.QuestionIndex(),
		"loading":       sess.Loading(),
		"runScore":      sess.RunScore(),
		"battleId":      sess.BattleID(),
	}
	if challengeID != "" {
		state["bestScore"] = sess.ChallengeScore(challengeID)
		state["solved"] = sess.SolvedQuestions(challengeID)
	}
	if err := sess.LoadError(); err != nil {
		if errors.Is(err, models.ErrChallengeNotFound) {
			state["errorCode"] = constants.ErrorCodeChallengeNotFound
		} else {
			state["errorCode"] = constants.ErrorCodeLoadFailed
		}
	}
	if challenge := sess.CurrentChallenge(); challenge != nil {
		state["totalQuestions"] = len(challenge.Questions)
		state["completed"] = sess.CurrentQuestion() == nil
	}
	if question := sess.CurrentQuestion(); question != nil {
		if sess.TimerArmedFor() != question.ID {
			sess.ArmQuestionTimer()
		}
		state["question"] = publicQuestion(question)
		state["remainingAttempts"] = sess.RemainingAttempts(challengeID, question.ID)
		state["remainingTime"] = int(sess.RemainingTime().Seconds())
	}
	c.JSON(http.StatusOK, state)
}

// publicQuestion shapes a question for the player: everything except the
// answer key.
func publicQuestion(q *models.Question) gin.H {
	payload := gin.H{
		"id":     q.ID,
		"points": q.Points,
		"hint":   q.Hint,
	}
	switch q.Clue.Kind {
	case models.ClueKindTeams:
		payload["teams"] = q.Clue.Teams
	case models.ClueKindCareer:
		payload["club"] = q.Clue.Club
		payload["nationality"] = q.Clue.Nationality
	}
	return payload
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (a *API) SubmitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer must not be empty", "code": constants.ErrorCodeEmptyAnswer})
		return
	}

	sessionID := a.Sessions.GetOrCreateSessionID(c)
	sess := a.Sessions.Get(c.Request.Context(), sessionID)

	question := sess.CurrentQuestion()
	if question == nil {
		if sess.Loading() {
			c.JSON(http.StatusConflict, gin.H{"error": "Challenge still loading", "code": constants.ErrorCodeChallengeLoading})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active question", "code": constants.ErrorCodeNoActiveQuestion})
		return
	}

	challengeID := sess.ActiveChallengeID()
	if sess.RemainingAttempts(challengeID, question.ID) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No attempts left for this question", "code": constants.ErrorCodeNoMoreAttempts})
		return
	}

	correct := sess.SubmitAnswer(req.Answer)
	response := gin.H{
		"correct":           correct,
		"remainingAttempts": sess.RemainingAttempts(challengeID, question.ID),
	}
	if correct {
		score := game.QuestionScore(question.Points, sess.RemainingTime(), sess.TimeLimit())
		sess.AddRunScore(score)
		response["questionScore"] = score
		response["runScore"] = sess.RunScore()
		response["correctAnswer"] = question.CorrectAnswer
	}
	a.Sessions.Save(c.Request.Context(), sessionID, sess)
	c.JSON(http.StatusOK, response)
}

func (a *API) NextQuestion(c *gin.Context) {
	sessionID := a.Sessions.GetOrCreateSessionID(c)
	sess := a.Sessions.Get(c.Request.Context(), sessionID)

	advanced := sess.NextQuestion()
	if advanced {
		sess.ArmQuestionTimer()
	} else {
		sess.CancelQuestionTimer()
	}
	a.Sessions.Save(c.Request.Context(), sessionID, sess)

	c.JSON(http.StatusOK, gin.H{
		"advanced":  advanced,
		"completed": sess.CurrentChallenge() != nil && sess.CurrentQuestion() == nil,
	})
}

type completeRequest struct {
	UserID string `json:"userId"`
}

func (a *API) CompleteGame(c *gin.Context) {
	var req completeRequest
	_ = c.ShouldBindJSON(&req)

	sessionID := a.Sessions.GetOrCreateSessionID(c)
	sess := a.Sessions.Get(c.Request.Context(), sessionID)

	challengeID := sess.ActiveChallengeID()
	if challengeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active challenge", "code": constants.ErrorCodeNoActiveChallenge})
		return
	}

	sess.CancelQuestionTimer()
	score := sess.RunScore()
	sess.SetChallengeCompleted(challengeID, score)

	if req.UserID != "" {
		if err := a.Store.RecordChallengeResult(c.Request.Context(), req.UserID, challengeID, score); err != nil {
			util.LogWarn("Failed to record result for user %s: %v", req.UserID, err)
		}
	}
	a.Sessions.Save(c.Request.Context(), sessionID, sess)

	util.LogRequest(c.Request.Context(), "Session %s completed challenge %s with score %d", sessionID, challengeID, score)
	c.JSON(http.StatusOK, gin.H{
		"challengeId": challengeID,
		"score":       score,
		"bestScore":   sess.ChallengeScore(challengeID),
	})
}

// RetryLoad re-requests a challenge whose load failed. Loads are never
// retried automatically; this is the player pressing the retry button.
func (a *API) RetryLoad(c *gin.Context) {
	sessionID := a.Sessions.GetOrCreateSessionID(c)
	sess := a.Sessions.Get(c.Request.Context(), sessionID)

	if sess.ActiveChallengeID() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active challenge", "code": constants.ErrorCodeNoActiveChallenge})
		return
	}
	sess.RetryLoad(context.Background())
	c.JSON(http.StatusOK, gin.H{"loading": sess.Loading()})
}

func (a *API) ResetGame(c *gin.Context) {
	sessionID := a.Sessions.GetOrCreateSessionID(c)
	sess := a.Sessions.Get(c.Request.Context(), sessionID)

	sess.ResetGame()
	a.Sessions.Save(c.Request.Context(), sessionID, sess)
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

type createBattleRequest struct {
	ChallengeID string `json:"challengeId" binding:"required"`
	Player1ID   string `json:"player1Id" binding:"required"`
}

func (a *API) CreateBattle(c *gin.Context) {
	var req createBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "challengeId and player1Id are required"})
		return
	}

	if _, err := a.Store.GetChallenge(c.Request.Context(), req.ChallengeID); err != nil {
		if errors.Is(err, models.ErrChallengeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Challenge not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create battle"})
		return
	}

	b := &models.Battle{
		ID:          uuid.NewString(),
		ChallengeID: req.ChallengeID,
		Player1ID:   req.Player1ID,
		Status:      constants.BattleStatusPending,
	}
	if err := a.Store.CreateBattle(c.Request.Context(), b); err != nil {
		util.LogWarn("Failed to create battle: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create battle"})
		return
	}

	util.LogRequest(c.Request.Context(), "Battle %s created for challenge %s by player %s", b.ID, b.ChallengeID, b.Player1ID)
	c.JSON(http.StatusCreated, gin.H{
		"battle":  b,
		"joinUrl": a.App.BaseURL + "/battles/" + b.ID,
	})
}

func (a *API) ListBattles(c *gin.Context) {
	battles, err := a.Store.ListBattles(c.Request.Context())
	if err != nil {
		util.LogWarn("Failed to list battles: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch battles"})
		return
	}
	if status := c.Query("status"); status != "" {
		battles = lo.Filter(battles, func(b models.Battle, _ int) bool {
			return b.Status == status
		})
	}
	if battles == nil {
		battles = []models.Battle{}
	}
	c.JSON(http.StatusOK, battles)
}

func (a *API) GetBattle(c *gin.Context) {
	b, err := a.Store.GetBattle(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrBattleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Battle not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch battle"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// BattleQR renders the battle's join link as a PNG QR code for the
// challenger to share.
func (a *API) BattleQR(c *gin.Context) {
	id := c.Param("id")
	if _, err := a.Store.GetBattle(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Battle not found"})
		return
	}
	png, err := qrcode.Encode(a.App.BaseURL+"/battles/"+id, qrcode.Medium, 256)
	if err != nil {
		util.LogWarn("Failed to encode QR for battle %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (a *API) BattleWS(c *gin.Context) {
	battleID := c.Param("id")
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.LogWarn("Websocket upgrade failed for battle %s: %v", battleID, err)
		return
	}
	if err := a.Battles.Join(context.Background(), battleID, userID, conn); err != nil {
		util.LogWarn("Battle %s: join failed for %s: %v", battleID, userID, err)
		conn.Close()
	}
}

func (a *API) Healthz(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	challengeCount, err := a.Store.CountChallenges(c.Request.Context())
	if err != nil {
		util.LogWarn("Failed to count challenges: %v", err)
	}

	a.App.LimiterMutex.RLock()
	limiterCount := len(a.App.LimiterMap)
	a.App.LimiterMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"env":               map[bool]string{true: "production", false: "development"}[a.App.IsProduction],
		"challenges_loaded": challengeCount,
		"active_sessions":   a.Sessions.Count(),
		"active_limiters":   limiterCount,
		"memory_alloc_mb":   m.Alloc / 1024 / 1024,
		"memory_sys_mb":     m.Sys / 1024 / 1024,
		"memory_gc_count":   m.NumGC,
		"uptime":            util.FormatUptime(time.Since(a.App.StartTime)),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}
