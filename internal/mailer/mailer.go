// Package mailer sends donation receipts.
package mailer

import "context"

type Service interface {
	Send(ctx context.Context, e Email) error
}

type Email struct {
	FromName string
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
}
