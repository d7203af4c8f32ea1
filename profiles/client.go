package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pawnest/adoptions_backend/config"
)

// Profile is the subset of the identity service's applicant profile used to
// prefill application forms.
type Profile struct {
	UserId   int    `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration
}

// NewClientFromEnv builds a client for the applicant profile service. Returns
// nil when PROFILE_SERVICE_URL is unset; callers treat a nil client as
// "profiles unavailable" and skip prefill.
func NewClientFromEnv() *Client {
	baseURL := os.Getenv("PROFILE_SERVICE_URL")
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cacheTTL:   15 * time.Minute,
	}
}

/*
caches:
	Profile:$userId
*/

func cacheKey(userId int) string {
	return fmt.Sprintf("Profile:%d", userId)
}

// Resolve fetches the applicant's profile, redis cache first.
func (c *Client) Resolve(ctx context.Context, userId int) (*Profile, error) {
	if c == nil {
		return nil, errors.New("profile service not configured")
	}

	var profile Profile
	exists, err := config.GetRedisObject(cacheKey(userId), &profile)
	if err == nil && exists {
		return &profile, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/profiles/%d", c.baseURL, userId), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.New("profile not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile service returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}

	// cache failures are non-fatal
	_ = config.SetRedisObject(cacheKey(userId), &profile, c.cacheTTL)

	return &profile, nil
}

// Invalidate drops the cached profile. Called by the profile.updated push
// handler so the next Resolve refetches.
func Invalidate(userId int) error {
	return config.RemoveRedisKey(cacheKey(userId))
}
