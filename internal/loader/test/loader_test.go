package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	loader "github.com/RomainGaget-hub/foot-challenge/internal/loader"
	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
)

const challengePayload = `{
	"id": "1",
	"type": "Club Journeyman",
	"name": "Club Journeyman",
	"description": "Guess players by the clubs they played for",
	"difficulty": 2,
	"questions": [
		{"id": "1-1", "correctAnswer": "Eden Hazard", "points": 10, "teams": ["Lille", "Chelsea", "Real Madrid"]},
		{"id": "1-2", "correctAnswer": "Luis Suárez", "points": 15, "teams": ["Ajax", "Liverpool", "Barcelona"]}
	]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/challenges", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "1", "type": "Club Journeyman", "name": "Club Journeyman", "difficulty": 2, "totalPoints": 25, "totalQuestions": 2},
			{"id": "2", "type": "National Team Star", "name": "National Team Star", "difficulty": 3, "totalPoints": 60, "totalQuestions": 4}
		]`))
	})
	mux.HandleFunc("/challenges/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(challengePayload))
	})
	mux.HandleFunc("/challenges/garbled", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "garbled", "questions": [`))
	})
	mux.HandleFunc("/challenges/flaky", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestListChallenges(t *testing.T) {
	server := newTestServer(t)
	l := loader.NewHTTPLoader(server.URL, server.Client())

	summaries, err := l.ListChallenges(context.Background())
	if err != nil {
		t.Fatalf("ListChallenges: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].ID != "1" || summaries[0].TotalPoints != 25 {
		t.Errorf("first summary = %+v", summaries[0])
	}
	if summaries[1].TotalQuestions != 4 {
		t.Errorf("second summary totalQuestions = %d, want 4", summaries[1].TotalQuestions)
	}
}

func TestGetChallenge(t *testing.T) {
	server := newTestServer(t)
	l := loader.NewHTTPLoader(server.URL+"/", server.Client())

	challenge, err := l.GetChallenge(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetChallenge: %v", err)
	}
	if len(challenge.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(challenge.Questions))
	}
	q := challenge.Questions[0]
	if q.Clue.Kind != models.ClueKindTeams {
		t.Errorf("clue kind = %q, want %q", q.Clue.Kind, models.ClueKindTeams)
	}
	if len(q.Clue.Teams) != 3 || q.Clue.Teams[1] != "Chelsea" {
		t.Errorf("teams = %v", q.Clue.Teams)
	}
	if challenge.Questions[1].CorrectAnswer != "Luis Suárez" {
		t.Errorf("correct answer = %q", challenge.Questions[1].CorrectAnswer)
	}
	if got := challenge.TotalPoints(); got != 25 {
		t.Errorf("TotalPoints = %d, want 25", got)
	}
}

func TestGetChallengeNotFound(t *testing.T) {
	server := newTestServer(t)
	l := loader.NewHTTPLoader(server.URL, server.Client())

	_, err := l.GetChallenge(context.Background(), "999")
	if !errors.Is(err, models.ErrChallengeNotFound) {
		t.Errorf("got %v, want ErrChallengeNotFound", err)
	}
}

func TestGetChallengeServerError(t *testing.T) {
	server := newTestServer(t)
	l := loader.NewHTTPLoader(server.URL, server.Client())

	_, err := l.GetChallenge(context.Background(), "flaky")
	var loadErr *loader.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("got %T, want *LoadError", err)
	}
	if errors.Is(err, models.ErrChallengeNotFound) {
		t.Error("a 500 must not map to not-found")
	}
}

func TestGetChallengeBadPayload(t *testing.T) {
	server := newTestServer(t)
	l := loader.NewHTTPLoader(server.URL, server.Client())

	_, err := l.GetChallenge(context.Background(), "garbled")
	var loadErr *loader.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("got %T, want *LoadError", err)
	}
	if loadErr.Unwrap() == nil {
		t.Error("LoadError must carry the underlying cause")
	}
}

func TestLoaderUnreachableHost(t *testing.T) {
	l := loader.NewHTTPLoader("http://127.0.0.1:1", nil)

	_, err := l.ListChallenges(context.Background())
	var loadErr *loader.LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("got %T, want *LoadError", err)
	}
}
