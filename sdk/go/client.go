package kingdomsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Kingdom HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Actor represents the API actor model (partial).
type Actor struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Gold             int     `json:"gold"`
	Reputation       int     `json:"reputation"`
	AttackPower      int     `json:"attack_power"`
	DefensePower     int     `json:"defense_power"`
	CheckedInKingdom *string `json:"checked_in_kingdom,omitempty"`
}

// Coup represents an open or resolved coup.
type Coup struct {
	ID               string   `json:"id"`
	KingdomID        string   `json:"kingdom_id"`
	InitiatorID      string   `json:"initiator_id"`
	Phase            string   `json:"phase"`
	StartedAt        string   `json:"started_at"`
	EndsAt           string   `json:"ends_at"`
	Attackers        []string `json:"attackers"`
	Defenders        []string `json:"defenders"`
	AttackerVictory  *bool    `json:"attacker_victory,omitempty"`
	AttackerStrength *int     `json:"attacker_strength,omitempty"`
	DefenderStrength *int     `json:"defender_strength,omitempty"`
	RequiredStrength *float64 `json:"required_strength,omitempty"`
	ResolvedAt       *string  `json:"resolved_at,omitempty"`
}

// CoupSummary is the active-coup listing entry.
type CoupSummary struct {
	ID                   string `json:"id"`
	KingdomID            string `json:"kingdom_id"`
	InitiatorID          string `json:"initiator_id"`
	EndsAt               string `json:"ends_at"`
	TimeRemainingSeconds int    `json:"time_remaining_seconds"`
	AttackerCount        int    `json:"attacker_count"`
	DefenderCount        int    `json:"defender_count"`
	ViewerSide           string `json:"viewer_side,omitempty"`
}

// Resolution is the full outcome of a resolved coup.
type Resolution struct {
	Coup    Coup `json:"coup"`
	Outcome struct {
		AttackerVictory  bool    `json:"attacker_victory"`
		AttackerStrength int     `json:"attacker_strength"`
		DefenderStrength int     `json:"defender_strength"`
		RequiredStrength float64 `json:"required_strength"`
	} `json:"outcome"`
	OldRulerID   *string `json:"old_ruler_id,omitempty"`
	NewRulerID   *string `json:"new_ruler_id,omitempty"`
	Participants []struct {
		ActorID         string `json:"actor_id"`
		Side            string `json:"side"`
		GoldDelta       int    `json:"gold_delta"`
		ReputationDelta int    `json:"reputation_delta"`
		Executed        bool   `json:"executed,omitempty"`
	} `json:"participants"`
}

// SweepResult is one entry of a sweep run.
type SweepResult struct {
	CoupID          string `json:"coup_id"`
	KingdomID       string `json:"kingdom_id"`
	AttackerVictory bool   `json:"attacker_victory"`
	Error           string `json:"error,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CheckIn checks an actor into a kingdom.
func (c *Client) CheckIn(ctx context.Context, actorID, kingdomID string) (Actor, error) {
	body := map[string]any{"kingdom_id": kingdomID}
	var resp Actor
	endpoint := fmt.Sprintf("v0/actors/%s/checkin", url.PathEscape(actorID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// InitiateCoup starts a coup in a kingdom on behalf of the
// authenticated actor.
func (c *Client) InitiateCoup(ctx context.Context, kingdomID string) (Coup, error) {
	var resp Coup
	endpoint := fmt.Sprintf("v0/kingdoms/%s/coups", url.PathEscape(kingdomID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// JoinCoup joins a side ("attackers" or "defenders") of an open coup.
func (c *Client) JoinCoup(ctx context.Context, coupID, side string) (Coup, error) {
	body := map[string]any{"side": side}
	var resp Coup
	endpoint := fmt.Sprintf("v0/coups/%s/join", url.PathEscape(coupID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetCoup fetches a coup by id.
func (c *Client) GetCoup(ctx context.Context, coupID string) (Coup, error) {
	var resp Coup
	endpoint := fmt.Sprintf("v0/coups/%s", url.PathEscape(coupID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListCoups returns active coups, optionally scoped to one kingdom.
func (c *Client) ListCoups(ctx context.Context, kingdomID string) ([]CoupSummary, error) {
	endpoint := "v0/coups"
	if kingdomID != "" {
		endpoint = fmt.Sprintf("%s?kingdom_id=%s", endpoint, url.QueryEscape(kingdomID))
	}
	var resp []CoupSummary
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ResolveCoup resolves a coup whose voting window has closed.
func (c *Client) ResolveCoup(ctx context.Context, coupID string) (Resolution, error) {
	var resp Resolution
	endpoint := fmt.Sprintf("v0/coups/%s/resolve", url.PathEscape(coupID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Sweep resolves every coup past its voting window.
func (c *Client) Sweep(ctx context.Context) ([]SweepResult, error) {
	var resp []SweepResult
	err := c.do(ctx, http.MethodPost, "v0/coups/sweep", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
