package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	battle "github.com/RomainGaget-hub/foot-challenge/internal/battle"
	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
	handlers "github.com/RomainGaget-hub/foot-challenge/internal/handlers"
	loader "github.com/RomainGaget-hub/foot-challenge/internal/loader"
	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
	session "github.com/RomainGaget-hub/foot-challenge/internal/session"
	store "github.com/RomainGaget-hub/foot-challenge/internal/store"
	util "github.com/RomainGaget-hub/foot-challenge/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting foot-challenge in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	port := util.GetEnvString("PORT", "8080")
	app := &models.App{
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		CookieMaxAge:   util.GetEnvDuration("COOKIE_MAX_AGE", 2*time.Hour),
		StaticCacheAge: util.GetEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		SessionTTL:     util.GetEnvDuration("SESSION_TTL", 3*time.Hour),
		QuestionTime:   util.GetEnvDuration("QUESTION_TIME_LIMIT", constants.DefaultQuestionTimeLimit),
		BaseURL:        util.GetEnvString("BASE_URL", "http://localhost:"+port),
		LimiterMap:     make(map[string]*models.RateLimiterEntry),
	}

	ctx := context.Background()
	db, err := store.Open(ctx, util.GetEnvString("DATABASE_PATH", "data/foot-challenge.db"))
	if err != nil {
		util.LogFatal("Failed to open database: %v", err)
	}
	defer db.Close()

	seedFile := util.GetEnvString("SEED_FILE", "data/challenges.json")
	if util.FileExists(seedFile) {
		if err := db.SeedFromFile(ctx, seedFile); err != nil {
			util.LogFatal("Failed to seed database: %v", err)
		}
	} else {
		util.LogWarn("Seed file %s not found, starting with existing data", seedFile)
	}

	sessions := session.NewRegistry(loader.NewStoreLoader(db), db,
		app.QuestionTime, app.SessionTTL, app.CookieMaxAge, app.IsProduction)
	api := &handlers.API{
		App:      app,
		Store:    db,
		Sessions: sessions,
		Battles:  battle.NewManager(db),
	}

	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(csrfMiddleware(app))
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedPaths([]string{constants.RouteBattles})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	noStore := cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})

	router.GET(constants.RouteChallenges, noStore, api.ListChallenges)
	router.GET(constants.RouteChallengeByID, noStore, api.GetChallenge)
	router.GET(constants.RouteLeaderboard, noStore, api.Leaderboard)

	gameRoutes := router.Group("/game", validateCSRFMiddleware(), noStore)
	gameRoutes.POST("/start", rateLimitMiddleware(app), api.StartGame)
	gameRoutes.GET("/state", api.GameState)
	gameRoutes.POST("/answer", rateLimitMiddleware(app), api.SubmitAnswer)
	gameRoutes.POST("/next", rateLimitMiddleware(app), api.NextQuestion)
	gameRoutes.POST("/complete", rateLimitMiddleware(app), api.CompleteGame)
	gameRoutes.POST("/reset", rateLimitMiddleware(app), api.ResetGame)
	gameRoutes.POST("/retry", rateLimitMiddleware(app), api.RetryLoad)

	router.POST(constants.RouteBattles, rateLimitMiddleware(app), api.CreateBattle)
	router.GET(constants.RouteBattles, noStore, api.ListBattles)
	router.GET(constants.RouteBattleByID, noStore, api.GetBattle)
	router.GET(constants.RouteBattleQR, cachecontrol.New(cachecontrol.Config{
		Public: true,
		MaxAge: cachecontrol.Duration(app.StaticCacheAge),
	}), api.BattleQR)
	router.GET(constants.RouteBattleWS, api.BattleWS)

	router.GET(constants.RouteHealthz, api.Healthz)

	sessions.StartCleanup()
	startLimiterCleanup(app)

	startServer(router, port)
}

func startLimiterCleanup(app *models.App) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			cleanupStaleRateLimiters(app)
		}
	}()
	util.LogInfo("Started rate limiter cleanup routine")
}

func startServer(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}
