/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wrytes/deployment-system/pkg/config"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
)

// ChatChannel posts rendered notifications to the chat front-end's webhook.
// The front-end resolves chat_id to the actual conversation.
type ChatChannel struct {
	url    string
	client *http.Client
}

// NewChatChannel returns nil when no webhook is configured, which callers
// treat as "channel absent".
func NewChatChannel() *ChatChannel {
	url := config.GetChatWebhookURL()
	if url == "" {
		return nil
	}
	return &ChatChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ChatChannel) Name() string { return "chat" }

type chatPayload struct {
	ChatId int64  `json:"chatId"`
	Text   string `json:"text"`
}

func (c *ChatChannel) Send(ctx context.Context, user *dbclient.User, topic string, data map[string]interface{}) error {
	body, err := json.Marshal(chatPayload{
		ChatId: user.ChatId,
		Text:   renderText(topic, data),
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode chat payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "chat webhook unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("chat webhook returned %d", resp.StatusCode)
	}
	return nil
}

// renderText turns a topic plus payload into a one-line chat message.
func renderText(topic string, data map[string]interface{}) string {
	subject := str(data, "name")
	if subject == "" {
		subject = str(data, "job_id")
	}
	var b strings.Builder
	switch topic {
	case "environment.active":
		fmt.Fprintf(&b, "Environment %s is ready.", subject)
	case "environment.deleted":
		fmt.Fprintf(&b, "Environment %s was deleted.", subject)
	case "environment.made_public":
		fmt.Fprintf(&b, "Environment %s is now public at %s.", subject, str(data, "domain"))
	case "environment.error":
		fmt.Fprintf(&b, "Environment %s hit an error: %s", subject, str(data, "error"))
	case "deployment.started":
		fmt.Fprintf(&b, "Deployment %s started.", subject)
	case "deployment.success":
		fmt.Fprintf(&b, "Deployment %s is running.", subject)
	case "deployment.failed":
		fmt.Fprintf(&b, "Deployment %s failed: %s", subject, str(data, "error"))
	case "deployment.stopped":
		fmt.Fprintf(&b, "Deployment %s was stopped.", subject)
	case "deployment.recovered":
		fmt.Fprintf(&b, "Deployment %s was restored after a restart.", subject)
	case "deployment.recovery-failed":
		fmt.Fprintf(&b, "Deployment %s could not be restored: %s", subject, str(data, "error"))
	default:
		fmt.Fprintf(&b, "%s: %s", topic, subject)
	}
	return b.String()
}

func str(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
