package database

import (
	"context"
	"fmt"

	"fbadmin/internal/admin"
)

// Post is stored at posts/<id> and copied to user-posts/<uid>/<id>
type Post struct {
	ID                        string          `json:"-"`
	UID                       string          `json:"uid"`
	Author                    string          `json:"author"`
	Title                     string          `json:"title"`
	Body                      string          `json:"body"`
	StarCount                 int             `json:"starCount"`
	Stars                     map[string]bool `json:"stars,omitempty"`
	LastNotificationTimestamp int64           `json:"lastNotificationTimestamp,omitempty"`
}

// User is stored at users/<uid>
type User struct {
	Username                string `json:"username"`
	Email                   string `json:"email,omitempty"`
	LastSentWeeklyTimestamp int64  `json:"lastSentWeeklyTimestamp,omitempty"`
}

func postPath(postID string) string {
	return joinPath("posts", postID)
}

func userPostPath(uid, postID string) string {
	return joinPath("user-posts", uid, postID)
}

// StarCountUpdate sets starCount to the number of entries in stars. Fields it
// does not know about are written back untouched; a missing post stays missing.
func StarCountUpdate(node TransactionNode) (interface{}, error) {
	var post map[string]interface{}
	if err := node.Unmarshal(&post); err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}
	stars, _ := post["stars"].(map[string]interface{})
	post["starCount"] = len(stars)
	return post, nil
}

// LoadPost reads posts/<id>
func LoadPost(ctx context.Context, store Store, postID string) (*Post, error) {
	if postID == "" {
		return nil, fmt.Errorf("%w: post ID is required", admin.ErrInvalidArgument)
	}
	var post *Post
	if err := store.Get(ctx, postPath(postID), &post); err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %q does not exist", admin.ErrInvalidArgument, postID)
	}
	post.ID = postID
	return post, nil
}

// RecountStars runs StarCountUpdate on both copies of a post
func RecountStars(ctx context.Context, store Store, postID, uid string) error {
	if err := store.Transaction(ctx, postPath(postID), StarCountUpdate); err != nil {
		return fmt.Errorf("recount of %s failed: %w", postPath(postID), err)
	}
	if err := store.Transaction(ctx, userPostPath(uid, postID), StarCountUpdate); err != nil {
		return fmt.Errorf("recount of %s failed: %w", userPostPath(uid, postID), err)
	}
	return nil
}

// TopPosts returns up to limit posts with the most stars, most starred first
func TopPosts(ctx context.Context, store Store, limit int) ([]Post, error) {
	nodes, err := store.TopByChild(ctx, "posts", "starCount", limit)
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		var post Post
		if err := nodes[i].Unmarshal(&post); err != nil {
			return nil, fmt.Errorf("failed to decode post %s: %w", nodes[i].Key(), err)
		}
		post.ID = nodes[i].Key()
		posts = append(posts, post)
	}
	return posts, nil
}

// AllUsers reads every user keyed by uid
func AllUsers(ctx context.Context, store Store) (map[string]User, error) {
	users := map[string]User{}
	if err := store.Get(ctx, "users", &users); err != nil {
		return nil, err
	}
	return users, nil
}
