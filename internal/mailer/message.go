package mailer

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"
)

var ErrInvalidEmail = errors.New("mailer: invalid email")

func (e Email) validate() error {
	switch {
	case len(e.To) == 0:
		return fmt.Errorf("%w: no recipient", ErrInvalidEmail)
	case e.From == "":
		return fmt.Errorf("%w: no sender", ErrInvalidEmail)
	case e.Subject == "":
		return fmt.Errorf("%w: no subject", ErrInvalidEmail)
	case e.TextBody == "" && e.HTMLBody == "":
		return fmt.Errorf("%w: empty body", ErrInvalidEmail)
	}
	for _, addr := range append([]string{e.From}, e.To...) {
		if strings.ContainsAny(addr, "\r\n") {
			return fmt.Errorf("%w: address contains a line break", ErrInvalidEmail)
		}
	}
	return nil
}

func randomToken() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// render produces an RFC 5322 message. Both bodies present yields
// multipart/alternative with text first.
func render(e Email, domain string, now time.Time) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }

	from := e.From
	if e.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", e.FromName), e.From)
	}
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", randomToken(), domain))
	header("From", from)
	header("To", strings.Join(e.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", e.Subject))
	header("MIME-Version", "1.0")
	for k, v := range e.Headers {
		if k == "" || v == "" || strings.ContainsAny(k+v, "\r\n") {
			continue
		}
		header(k, v)
	}

	part := func(contentType, body string) {
		header("Content-Type", contentType+"; charset=UTF-8")
		header("Content-Transfer-Encoding", "8bit")
		b.WriteString("\r\n")
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\r\n")
		}
	}

	switch {
	case e.TextBody != "" && e.HTMLBody != "":
		boundary := "alt-" + randomToken()
		header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		b.WriteString("\r\n")
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		part("text/plain", e.TextBody)
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		part("text/html", e.HTMLBody)
		fmt.Fprintf(&b, "--%s--\r\n", boundary)
	case e.HTMLBody != "":
		part("text/html", e.HTMLBody)
	default:
		part("text/plain", e.TextBody)
	}
	return []byte(b.String()), nil
}
