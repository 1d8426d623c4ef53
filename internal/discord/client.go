// Package discord implements the DM-send slice of the chat platform's REST
// API — just enough to open a DM channel and post a message. It is not a
// protocol client; gateway traffic, intents and the rest of the surface live
// outside this service.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/farhan/hookgate/internal/notify"
)

const DefaultAPIBase = "https://discord.com/api/v10"

// API error code for "cannot send messages to this user": privacy settings
// or a DM handshake that has not completed yet.
const codeCannotMessage = 50007

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	log     zerolog.Logger
}

func NewClient(token, baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
		log:     log,
	}
}

// FetchUser resolves an external user id into a sendable handle by opening
// (or reusing, server-side) the DM channel with that user.
func (c *Client) FetchUser(ctx context.Context, externalID string) (notify.User, error) {
	var channel struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "/users/@me/channels", map[string]string{"recipient_id": externalID}, &channel)
	if err != nil {
		return nil, fmt.Errorf("open DM channel for %s: %w", externalID, err)
	}
	c.log.Debug().Str("external_id", externalID).Str("channel_id", channel.ID).Msg("DM channel opened")
	return &dmChannel{client: c, channelID: channel.ID, userID: externalID}, nil
}

type dmChannel struct {
	client    *Client
	channelID string
	userID    string
}

func (d *dmChannel) SendDM(ctx context.Context, text string) error {
	path := fmt.Sprintf("/channels/%s/messages", d.channelID)
	if err := d.client.post(ctx, path, map[string]string{"content": text}, nil); err != nil {
		return fmt.Errorf("send DM to %s: %w", d.userID, err)
	}
	return nil
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("discord API error %d (code %d): %s", e.Status, e.Code, e.Message)
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HookGate/1.0")
	req.Header.Set("Authorization", "Bot "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		json.Unmarshal(data, apiErr)
		if apiErr.Code == codeCannotMessage {
			return fmt.Errorf("%v: %w", apiErr, notify.ErrCannotMessage)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}
