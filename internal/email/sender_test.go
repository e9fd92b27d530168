package email_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recap/internal/config"
	"recap/internal/email"
	"recap/internal/services"
)

func TestSubjectIncludesChannelAndTitle(t *testing.T) {
	got := email.Subject(email.Summary{
		VideoID:     "abcdefghijk",
		Title:       "How Go Works",
		ChannelName: "Example Channel",
	})
	if got != "[recap] Example Channel: How Go Works" {
		t.Fatalf("unexpected subject %q", got)
	}

	got = email.Subject(email.Summary{VideoID: "abcdefghijk"})
	if got != "[recap] abcdefghijk" {
		t.Fatalf("expected video id fallback, got %q", got)
	}
}

func TestBodyIncludesLinkAndSummary(t *testing.T) {
	body := email.Body(email.Summary{
		VideoID: "abcdefghijk",
		Title:   "How Go Works",
		Body:    "The summary text.",
	})
	if !strings.Contains(body, "https://www.youtube.com/watch?v=abcdefghijk") {
		t.Fatalf("expected watch link in body, got %q", body)
	}
	if !strings.Contains(body, "The summary text.") {
		t.Fatalf("expected summary in body, got %q", body)
	}
}

func TestSendValidatesInputs(t *testing.T) {
	sender := email.NewSMTPSender(config.Email{
		SMTPHost: "smtp.test.invalid",
		From:     "recap@test.invalid",
		To:       "inbox@test.invalid",
	})
	err := sender.Send(context.Background(), email.Summary{VideoID: "abc"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty body, got %v", err)
	}

	unconfigured := email.NewSMTPSender(config.Email{})
	err = unconfigured.Send(context.Background(), email.Summary{VideoID: "abc", Body: "text"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
