/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package notification

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/wrytes/deployment-system/pkg/config"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
)

// EmailChannel delivers notifications over SMTP. Users without a handle that
// looks like an address are skipped.
type EmailChannel struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailChannel returns nil when SMTP is not configured.
func NewEmailChannel() *EmailChannel {
	host := config.GetSMTPHost()
	from := config.GetSMTPFrom()
	if host == "" || from == "" {
		return nil
	}
	return &EmailChannel{
		dialer: gomail.NewDialer(host, config.GetSMTPPort(), config.GetSMTPUser(), config.GetSMTPPassword()),
		from:   from,
	}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(_ context.Context, user *dbclient.User, topic string, data map[string]interface{}) error {
	if !strings.Contains(user.Handle, "@") {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", e.from)
	msg.SetHeader("To", user.Handle)
	msg.SetHeader("Subject", fmt.Sprintf("[deployments] %s", topic))
	msg.SetBody("text/plain", renderText(topic, data))
	return e.dialer.DialAndSend(msg)
}
