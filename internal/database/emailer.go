package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fbadmin/internal/admin"
)

// Mail is one outgoing email
type Mail struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// LogMailer only logs what it would send
type LogMailer struct {
	logger admin.Logger
}

// NewLogMailer creates a mailer that writes to logger
func NewLogMailer(logger admin.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the mail
func (m *LogMailer) Send(_ context.Context, mail Mail) error {
	m.logger.Info("MOCK IMPLEMENTATION: email not delivered",
		"to", strings.Join(mail.To, ","),
		"subject", mail.Subject,
	)
	return nil
}

// Emailer sends the notification and weekly emails and records when they went out
type Emailer struct {
	store  Store
	mailer Mailer
	logger admin.Logger
}

// NewEmailer creates an emailer
func NewEmailer(store Store, mailer Mailer, logger admin.Logger) *Emailer {
	return &Emailer{store: store, mailer: mailer, logger: logger}
}

// SendNotificationEmail tells an author that postID got a new star, then stamps
// lastNotificationTimestamp on both copies of the post in one write
func (e *Emailer) SendNotificationEmail(ctx context.Context, email, uid, postID string) error {
	e.logger.Info("sending notification email", "email", email, "post_id", postID)
	if err := e.mailer.Send(ctx, Mail{
		To:      []string{email},
		Subject: "Your post got a new star",
		Body:    fmt.Sprintf("Post %s just received a new star.", postID),
	}); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	stamps := make(map[string]interface{}, 2)
	for _, path := range []string{postPath(postID), userPostPath(uid, postID)} {
		stamps[joinPath(path, "lastNotificationTimestamp")] = ServerTimestamp
	}
	return e.store.Update(ctx, "", stamps)
}

// SendWeeklyEmail mails the top posts to every user with an email address and
// stamps lastSentWeeklyTimestamp on every user
func (e *Emailer) SendWeeklyEmail(ctx context.Context, users map[string]User, topPosts []Post) error {
	if len(topPosts) == 0 {
		e.logger.Info("no posts yet, skipping weekly email", "users", len(users))
		return nil
	}
	top := topPosts[0]
	e.logger.Info("sending weekly email",
		"users", len(users),
		"top_post", fmt.Sprintf("the top post is %s by %s", top.Title, top.Author),
	)

	uids := make([]string, 0, len(users))
	for uid := range users {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	var recipients []string
	for _, uid := range uids {
		if email := users[uid].Email; email != "" {
			recipients = append(recipients, email)
		}
	}

	if len(recipients) > 0 {
		var body strings.Builder
		for i, post := range topPosts {
			fmt.Fprintf(&body, "%d. %s by %s (%d stars)\n", i+1, post.Title, post.Author, post.StarCount)
		}
		if err := e.mailer.Send(ctx, Mail{
			To:      recipients,
			Subject: "This week's top posts",
			Body:    body.String(),
		}); err != nil {
			return fmt.Errorf("failed to send weekly email: %w", err)
		}
	}

	if len(uids) == 0 {
		return nil
	}
	stamps := make(map[string]interface{}, len(uids))
	for _, uid := range uids {
		stamps[joinPath("users", uid, "lastSentWeeklyTimestamp")] = ServerTimestamp
	}
	return e.store.Update(ctx, "", stamps)
}
