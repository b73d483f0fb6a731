package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// sendMail is swapped in tests.
var sendMail = smtp.SendMail

type emailNotifier struct {
	addr     string
	host     string
	from     string
	to       []string
	username string
	password string
}

// NewEmail sends plain-text run summaries over SMTP. Username and password
// are optional but must be set together.
func NewEmail(host string, port int, from, to, username, password string) (Notifier, error) {
	host = strings.TrimSpace(host)
	from = strings.TrimSpace(from)
	switch {
	case host == "":
		return nil, fmt.Errorf("config.smtp_host is required")
	case port <= 0:
		return nil, fmt.Errorf("config.smtp_port must be > 0")
	case from == "":
		return nil, fmt.Errorf("config.from is required")
	}

	recipients := splitRecipients(to)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("config.to must include at least one recipient")
	}

	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if (username == "") != (password == "") {
		return nil, fmt.Errorf("config.username and config.password must be set together")
	}

	return &emailNotifier{
		addr:     host + ":" + strconv.Itoa(port),
		host:     host,
		from:     from,
		to:       recipients,
		username: username,
		password: password,
	}, nil
}

func (e *emailNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	msg := buildMessage(e.from, e.to, emailSubject(event), buildEmailBody(event), time.Now())
	if err := sendMail(e.addr, auth, e.from, e.to, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func emailSubject(event Event) string {
	subject := fmt.Sprintf("[newsdrop] %s: %s %s", event.Status, event.Folder, event.Date)
	if event.DryRun {
		subject += " (dry run)"
	}
	return subject
}

func buildMessage(from string, to []string, subject, body string, at time.Time) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"Date: " + at.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		strings.ReplaceAll(body, "\n", "\r\n"),
	}, "\r\n"))
}

func buildEmailBody(event Event) string {
	lines := []string{
		"Sync run",
		"",
		"status: " + event.Status,
		"store: " + event.Store,
		"folder: " + event.Folder,
		"date: " + event.Date,
		fmt.Sprintf("dry_run: %t", event.DryRun),
		"uploaded: " + joinOrNone(event.Uploaded),
		"deleted: " + joinOrNone(event.Deleted),
		"duration: " + event.Duration,
	}
	if len(event.Skipped) > 0 {
		lines = append(lines, "skipped: "+strings.Join(event.Skipped, ", "))
	}
	if len(event.FailedSources) > 0 {
		lines = append(lines, "failed sources: "+strings.Join(event.FailedSources, ", "))
	}
	if event.Error != "" {
		lines = append(lines, "error: "+event.Error)
	}
	return strings.Join(lines, "\n")
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func splitRecipients(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
