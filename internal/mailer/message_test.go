package mailer

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRenderMultipart(t *testing.T) {
	t.Parallel()

	raw, err := render(Email{
		FromName: "Goodies",
		From:     "no-reply@goodies.local",
		To:       []string{"donor@example.com"},
		Subject:  "Thank you",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
	}, "goodies.local", time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	msg := string(raw)
	for _, want := range []string{
		"To: donor@example.com\r\n",
		"Subject: Thank you\r\n",
		"multipart/alternative",
		"text/plain; charset=UTF-8",
		"text/html; charset=UTF-8",
		"<p>html</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestRenderRejectsHeaderInjection(t *testing.T) {
	t.Parallel()

	_, err := render(Email{
		From:     "a@b.c",
		To:       []string{"x@y.z\r\nBcc: victim@example.com"},
		Subject:  "s",
		TextBody: "b",
	}, "d", time.Now())
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
}

func TestRenderRequiresRecipient(t *testing.T) {
	t.Parallel()

	if _, err := render(Email{From: "a@b.c", Subject: "s", TextBody: "b"}, "d", time.Now()); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
}
