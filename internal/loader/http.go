package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
)

// HTTPLoader reads challenges from the public JSON API. Both operations are
// read-only and idempotent; failures surface as ErrChallengeNotFound or
// *LoadError and are never retried here.
type HTTPLoader struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLoader(baseURL string, client *http.Client) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (l *HTTPLoader) ListChallenges(ctx context.Context) ([]models.ChallengeSummary, error) {
	var summaries []models.ChallengeSummary
	if err := l.getJSON(ctx, l.baseURL+"/challenges", &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (l *HTTPLoader) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/challenges/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, &LoadError{Op: "get challenge", Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &LoadError{Op: "get challenge", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrChallengeNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Op: "get challenge", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var challenge models.Challenge
	if err := json.NewDecoder(resp.Body).Decode(&challenge); err != nil {
		return nil, &LoadError{Op: "decode challenge", Err: err}
	}
	tagClues(&challenge)
	return &challenge, nil
}

func (l *HTTPLoader) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &LoadError{Op: "list challenges", Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return &LoadError{Op: "list challenges", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &LoadError{Op: "list challenges", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &LoadError{Op: "decode challenges", Err: err}
	}
	return nil
}

// tagClues resolves each question's clue case from the challenge type, which
// is authoritative over whatever optional fields the payload carried.
func tagClues(challenge *models.Challenge) {
	kind, err := models.ResolveClueKind(challenge.Type)
	if err != nil {
		return
	}
	for i := range challenge.Questions {
		challenge.Questions[i].Clue.Kind = kind
	}
}
