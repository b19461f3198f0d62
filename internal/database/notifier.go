package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"fbadmin/internal/admin"
)

// Notifier keeps star counts current and emails authors about new stars
type Notifier struct {
	store      Store
	subscriber Subscriber
	emailer    *Emailer
	logger     admin.Logger

	mu      sync.Mutex
	posts   map[string]context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewNotifier creates a notifier
func NewNotifier(store Store, subscriber Subscriber, emailer *Emailer, logger admin.Logger) *Notifier {
	return &Notifier{
		store:      store,
		subscriber: subscriber,
		emailer:    emailer,
		logger:     logger,
		posts:      make(map[string]context.CancelFunc),
	}
}

// Name identifies the notifier in health reports
func (n *Notifier) Name() string {
	return "database_listeners"
}

// Health reports whether the posts listener is attached
func (n *Notifier) Health(context.Context) error {
	if !n.running.Load() {
		return errors.New("posts listener is not attached")
	}
	return nil
}

// Run listens to posts until ctx is cancelled or the posts listener fails.
// Each post gets one stars listener that recounts and notifies.
func (n *Notifier) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		n.wg.Wait()
		n.mu.Lock()
		n.posts = make(map[string]context.CancelFunc)
		n.mu.Unlock()
	}()

	sub, err := n.subscriber.Subscribe(ctx, "posts")
	if err != nil {
		n.logger.Error("unable to attach listener to posts", "error", err)
		return err
	}
	defer func() { _ = sub.Close() }()

	n.running.Store(true)
	defer n.running.Store(false)
	n.logger.Info("listening for posts")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case EventChildAdded:
				n.watchPost(ctx, ev.Key, ev.Snapshot)
			case EventChildRemoved:
				n.unwatchPost(ev.Key)
			case EventError:
				n.logger.Error("posts listener failed", "error", ev.Err)
				return ev.Err
			}
		}
	}
}

func (n *Notifier) watchPost(ctx context.Context, postID string, snapshot Snapshot) {
	var post Post
	if err := snapshot.Unmarshal(&post); err != nil {
		n.logger.Warn("skipping unreadable post", "post_id", postID, "error", err)
		return
	}
	if post.UID == "" {
		n.logger.Warn("skipping post without author", "post_id", postID)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.posts[postID]; exists {
		return
	}
	postCtx, cancel := context.WithCancel(ctx)
	n.posts[postID] = cancel

	n.wg.Add(1)
	go n.watchStars(postCtx, postID, post.UID)
}

func (n *Notifier) unwatchPost(postID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cancel, ok := n.posts[postID]; ok {
		cancel()
		delete(n.posts, postID)
	}
}

// watchStars recounts both copies of the post whenever its stars change and
// notifies the author for every star added
func (n *Notifier) watchStars(ctx context.Context, postID, uid string) {
	defer n.wg.Done()
	n.listen(ctx, joinPath(postPath(postID), "stars"), func(ev Event) {
		switch ev.Kind {
		case EventValue:
			if err := RecountStars(ctx, n.store, postID, uid); err != nil {
				n.logger.Error("star count update failed", "post_id", postID, "error", err)
				return
			}
			n.logger.Debug("star count updated", "post_id", postID)
		case EventChildAdded:
			n.notifyAuthor(ctx, uid, postID)
		}
	})
}

func (n *Notifier) listen(ctx context.Context, path string, handle func(Event)) {
	sub, err := n.subscriber.Subscribe(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			n.logger.Error("unable to attach listener", "path", path, "error", err)
		}
		return
	}
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Kind == EventError {
				n.logger.Error("listener failed", "path", path, "error", ev.Err)
				return
			}
			handle(ev)
		}
	}
}

func (n *Notifier) notifyAuthor(ctx context.Context, uid, postID string) {
	var user *User
	if err := n.store.Get(ctx, joinPath("users", uid), &user); err != nil {
		n.logger.Error("unable to get user data", "uid", uid, "error", err)
		return
	}
	if user == nil || user.Email == "" {
		return
	}
	if err := n.emailer.SendNotificationEmail(ctx, user.Email, uid, postID); err != nil {
		n.logger.Error("notification email failed", "uid", uid, "post_id", postID, "error", err)
	}
}
