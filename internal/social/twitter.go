package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/rs/zerolog"

	"relaybot/internal/config"
)

type Publisher interface {
	Publish(ctx context.Context, text string) bool
}

// Twitter publishes to the operator account through the v2 tweets endpoint,
// signing requests with OAuth 1.0a user context.
type Twitter struct {
	client *http.Client
	url    string
	log    zerolog.Logger
}

func NewTwitter(cfg config.TwitterConfig, log zerolog.Logger) *Twitter {
	t := &Twitter{
		url: cfg.PublishURL,
		log: log.With().Str("component", "twitter").Logger(),
	}
	if !cfg.HasCredentials() {
		t.log.Warn().Msg("twitter credentials incomplete, publishing disabled")
		return t
	}

	oc := oauth1.NewConfig(cfg.APIKey, cfg.APIKeySecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)
	t.client = oc.Client(oauth1.NoContext, token)
	t.client.Timeout = 15 * time.Second
	return t
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Publish posts text and reports whether the API accepted it.
func (t *Twitter) Publish(ctx context.Context, text string) bool {
	if t.client == nil {
		t.log.Error().Msg("publish requested without credentials")
		return false
	}

	id, err := t.publish(ctx, text)
	if err != nil {
		t.log.Error().Err(err).Str("text", text).Msg("didn't manage to publish a new tweet")
		return false
	}

	t.log.Info().Str("post_id", id).Str("text", text).Msg("tweet published")
	return true
}

func (t *Twitter) publish(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var out tweetResponse
	_ = json.Unmarshal(data, &out)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("twitter error: %d %s %s", resp.StatusCode, out.Title, out.Detail)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("twitter response without id")
	}
	return out.Data.ID, nil
}
