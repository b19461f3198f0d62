package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"fbadmin/internal/admin"
	"fbadmin/internal/credential"
	"fbadmin/internal/database"
	"fbadmin/internal/handlers"
	"fbadmin/internal/restclient"
	"fbadmin/internal/scheduler"
)

func newCmdDatabase(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "database",
		Short: "Run the realtime database listeners and the weekly email job",
		Args:  cobra.ArbitraryArgs,
		RunE:  usage,
	}
	cmd.AddCommand(newCmdDatabaseServe(rt))
	cmd.AddCommand(newCmdDatabaseTopPosts(rt))
	cmd.AddCommand(newCmdDatabaseWeeklyEmail(rt))
	cmd.AddCommand(newCmdDatabaseRecount(rt))
	return cmd
}

// databaseDeps are the database components shared by the sub-commands
type databaseDeps struct {
	store   database.Store
	emailer *database.Emailer
	url     string
}

func (rt *runtime) databaseDeps(ctx context.Context) (*databaseDeps, error) {
	provider, err := rt.credentials(ctx)
	if err != nil {
		return nil, err
	}
	url, err := provider.DatabaseURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", admin.ErrConfigurationError, err)
	}
	app, err := provider.NewApp(ctx)
	if err != nil {
		return nil, err
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, &admin.CredentialError{Source: "database", Err: err}
	}

	store := database.NewSDKStore(client, rt.metrics)
	return &databaseDeps{
		store:   store,
		emailer: database.NewEmailer(store, database.NewLogMailer(rt.logger), rt.logger),
		url:     url,
	}, nil
}

func (rt *runtime) weeklyScheduler(deps *databaseDeps) (*scheduler.Scheduler, error) {
	job := database.NewWeeklyEmailJob(deps.store, deps.emailer, rt.config.Database.TopPostsLimit, rt.logger)
	return scheduler.New(rt.config.Database.WeeklyCron, job, scheduler.SystemClock, rt.logger, rt.metrics)
}

func newCmdDatabaseServe(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Listen for new posts and stars, run the weekly email job and serve health checks",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := rt.databaseDeps(cmd.Context())
			if err != nil {
				return err
			}
			sched, err := rt.weeklyScheduler(deps)
			if err != nil {
				return err
			}

			streamHTTP := &http.Client{CheckRedirect: restclient.PreserveAuthOnRedirect}
			rest := rt.restClient(admin.ServiceTypeDatabase, streamHTTP, deps.url, credential.ScopeDatabase, credential.ScopeUserinfoEmail)
			streamer := database.NewStreamer(rest, rt.config.Database.EventBuffer, rt.logger, rt.metrics)
			notifier := database.NewNotifier(deps.store, streamer, deps.emailer, rt.logger)

			var gatherer prometheus.Gatherer
			if rt.registry != nil {
				gatherer = rt.registry
			}
			h := handlers.NewHandlers([]admin.HealthChecker{notifier, sched}, rt.cache, rt.logger)
			server := handlers.NewServer(rt.config.Server, rt.config.Metrics, h, gatherer, rt.logger)

			return serve(cmd.Context(), rt, server, notifier, sched)
		},
	}
}

// serve runs the listeners, the scheduler and the HTTP server until one of
// them fails or the process is interrupted, then shuts everything down
func serve(parent context.Context, rt *runtime, server *handlers.Server, notifier *database.Notifier, sched *scheduler.Scheduler) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	rt.logger.Info("starting database listeners", "version", version, "weekly_cron", rt.config.Database.WeeklyCron)

	errs := make(chan error, 3)
	var wg sync.WaitGroup
	start := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}
	start("server", server.Start)
	start(notifier.Name(), func() error { return notifier.Run(ctx) })
	start(sched.Name(), func() error { return sched.Run(ctx) })

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	var runErr error
	select {
	case runErr = <-errs:
		rt.logger.Error("component failed", "error", runErr)
	case sig := <-interrupt:
		rt.logger.Info("received interrupt signal", "signal", sig.String())
	case <-parent.Done():
	}

	rt.logger.Info("starting graceful shutdown")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), rt.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		rt.logger.Error("server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		rt.logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		rt.logger.Error("shutdown timeout exceeded, forcing exit")
	}
	return runErr
}

func newCmdDatabaseTopPosts(rt *runtime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top-posts",
		Short: "Print the most starred posts",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := rt.databaseDeps(cmd.Context())
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = rt.config.Database.TopPostsLimit
			}
			posts, err := database.TopPosts(cmd.Context(), deps.store, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Top %d posts:\n", len(posts))
			for _, post := range posts {
				fmt.Fprintf(out, "  %s %d stars %q by %s\n", post.ID, post.StarCount, post.Title, post.Author)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of posts (default from configuration)")
	return cmd
}

func newCmdDatabaseWeeklyEmail(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "weekly-email",
		Short: "Run the weekly email job once now",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := rt.databaseDeps(cmd.Context())
			if err != nil {
				return err
			}
			sched, err := rt.weeklyScheduler(deps)
			if err != nil {
				return err
			}
			if err := sched.RunOnce(cmd.Context()); err != nil {
				return err
			}
			runID, _, _ := sched.LastRun()
			fmt.Fprintf(cmd.OutOrStdout(), "Weekly email job finished, run %s\n", runID)
			return nil
		},
	}
}

func newCmdDatabaseRecount(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "recount <postID>",
		Short: "Recompute the star count of a post",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := rt.databaseDeps(cmd.Context())
			if err != nil {
				return err
			}
			post, err := database.LoadPost(cmd.Context(), deps.store, args[0])
			if err != nil {
				return err
			}
			if err := database.RecountStars(cmd.Context(), deps.store, post.ID, post.UID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Star count of post %s recomputed\n", post.ID)
			return nil
		},
	}
}
