package database

import (
	"context"
	"fmt"

	"fbadmin/internal/admin"
)

// WeeklyEmailJob mails every user the most starred posts
type WeeklyEmailJob struct {
	store   Store
	emailer *Emailer
	limit   int
	logger  admin.Logger
}

// NewWeeklyEmailJob creates the job. limit is the number of top posts.
func NewWeeklyEmailJob(store Store, emailer *Emailer, limit int, logger admin.Logger) *WeeklyEmailJob {
	if limit <= 0 {
		limit = 5
	}
	return &WeeklyEmailJob{store: store, emailer: emailer, limit: limit, logger: logger}
}

// Name identifies the job in logs and metrics
func (j *WeeklyEmailJob) Name() string {
	return "weekly_email"
}

// Run reads the top posts and all users, then sends the weekly email
func (j *WeeklyEmailJob) Run(ctx context.Context) error {
	posts, err := TopPosts(ctx, j.store, j.limit)
	if err != nil {
		return fmt.Errorf("could not get top posts: %w", err)
	}
	users, err := AllUsers(ctx, j.store)
	if err != nil {
		return fmt.Errorf("could not get all users: %w", err)
	}
	j.logger.Debug("weekly email inputs", "posts", len(posts), "users", len(users))
	return j.emailer.SendWeeklyEmail(ctx, users, posts)
}
