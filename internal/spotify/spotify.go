// Package spotify is the External Adapter (Component G): a thin client for
// the currently-playing-track provider, grounded on the resty-based
// client-credentials exchange pattern the corpus uses for this API.
package spotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/snapetech/audiocache/internal/apperr"
)

const (
	tokenURL          = "https://accounts.spotify.com/api/token"
	nowPlayingURL     = "https://api.spotify.com/v1/me/player/currently-playing"
	tokenRefreshGrace = 60 * time.Second

	// pollRateLimit caps calls to the provider well under its documented
	// rate limits regardless of how aggressively a UI polls NowPlaying.
	pollRateLimit = rate.Limit(1) // 1 request/sec
	pollBurst     = 3
)

// NowPlaying is the adapter's normalized view of the provider's
// currently-playing response, per spec.md §4.6.
type NowPlaying struct {
	ID         string
	IsPlaying  bool
	Title      string
	Artist     string
	AlbumImage string
	ProgressMs int64
	DurationMs int64
	Timestamp  time.Time
}

// Client refreshes an OAuth access token on demand and polls NowPlaying.
// A single Client is safe for concurrent use.
type Client struct {
	HTTP         *resty.Client
	ClientID     string
	ClientSecret string
	RefreshToken string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time

	limiter *rate.Limiter
}

// New builds a Client against the real Spotify endpoints.
func New(clientID, clientSecret, refreshToken string) *Client {
	return &Client{
		HTTP:         resty.New().SetTimeout(10 * time.Second),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
		limiter:      rate.NewLimiter(pollRateLimit, pollBurst),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// refreshAccessToken exchanges the stored refresh token for a fresh access
// token, per spec.md §4.6's "OAuth refresh is an external collaborator's
// concern" — this is that collaborator, wired behind the adapter interface.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	var body tokenResponse
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetBasicAuth(c.ClientID, c.ClientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": c.RefreshToken,
		}).
		SetResult(&body).
		Post(tokenURL)
	if err != nil {
		return apperr.Upstream("spotify token refresh", err)
	}
	if resp.IsError() {
		return apperr.Upstream(fmt.Sprintf("spotify token refresh: status %d", resp.StatusCode()), nil)
	}
	if body.AccessToken == "" {
		return apperr.Upstream("spotify token refresh: empty access_token", nil)
	}

	c.mu.Lock()
	c.accessToken = body.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	c.mu.Unlock()
	return nil
}

func (c *Client) validAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiresAt := c.accessToken, c.expiresAt
	c.mu.Unlock()

	if token != "" && time.Now().Add(tokenRefreshGrace).Before(expiresAt) {
		return token, nil
	}
	if err := c.refreshAccessToken(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	token = c.accessToken
	c.mu.Unlock()
	return token, nil
}

type currentlyPlayingResponse struct {
	IsPlaying  bool  `json:"is_playing"`
	ProgressMs int64 `json:"progress_ms"`
	Timestamp  int64 `json:"timestamp"`
	Item       *struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		DurationMs int64 `json:"duration_ms"`
		Album      struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
}

// NowPlaying reports the provider's current playback state. A 204 or a null
// "item" both mean nothing is playing, not an error, per spec.md §4.6.
func (c *Client) NowPlaying(ctx context.Context) (*NowPlaying, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Internal("rate limiter wait", err)
	}

	token, err := c.validAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body currentlyPlayingResponse
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&body).
		Get(nowPlayingURL)
	if err != nil {
		return nil, apperr.Upstream("spotify now-playing", err)
	}
	if resp.StatusCode() == 204 || len(resp.Body()) == 0 {
		return &NowPlaying{IsPlaying: false}, nil
	}
	if resp.IsError() {
		return nil, apperr.Upstream(fmt.Sprintf("spotify now-playing: status %d", resp.StatusCode()), nil)
	}
	if body.Item == nil {
		return &NowPlaying{IsPlaying: false}, nil
	}

	artistNames := make([]string, 0, len(body.Item.Artists))
	for _, a := range body.Item.Artists {
		artistNames = append(artistNames, a.Name)
	}
	artist := joinComma(artistNames)

	var albumImage string
	if len(body.Item.Album.Images) > 0 {
		albumImage = body.Item.Album.Images[0].URL
	}

	return &NowPlaying{
		ID:         body.Item.ID,
		IsPlaying:  body.IsPlaying,
		Title:      body.Item.Name,
		Artist:     artist,
		AlbumImage: albumImage,
		ProgressMs: body.ProgressMs,
		DurationMs: body.Item.DurationMs,
		Timestamp:  time.UnixMilli(body.Timestamp),
	}, nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
