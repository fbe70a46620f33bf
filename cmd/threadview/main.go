// threadview печатает дерево комментариев поста в терминал и умеет
// лайкнуть, ответить или написать новый комментарий.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/client"
	"github.com/UkralStul/threaded-comments/internal/config"
	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/logger"
	"github.com/UkralStul/threaded-comments/internal/thread"
)

func main() {
	postID := flag.String("post", "", "Post id (required)")
	page := flag.Int("page", 1, "Page of root comments")
	sortBy := flag.String("sort", "latest", "Root order: latest or likes")
	focus := flag.String("focus", "", "Comment id to pin on top")
	search := flag.String("search", "", "Only roots containing this text")
	status := flag.String("status", "", "Root filter: edited or unanswered")
	expandAll := flag.Bool("expand", false, "Expand every thread")
	likeID := flag.String("like", "", "Toggle like on this comment")
	replyTo := flag.String("reply-to", "", "Reply to this comment")
	text := flag.String("text", "", "Text for -reply-to or a new root comment")
	watch := flag.Duration("watch", 0, "Keep applying live events for this long, then print again")
	flag.Parse()

	if *postID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := config.LoadEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, true)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	order, err := thread.ParseSortOrder(*sortBy)
	if err != nil {
		lg.Fatal("bad -sort", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	api, err := client.New(cfg.APIURL, client.WithUser(cfg.ViewerID))
	if err != nil {
		lg.Fatal("client", zap.Error(err))
	}

	var viewer *domain.UserSummary
	if cfg.ViewerID != "" {
		viewer, err = api.User(ctx, cfg.ViewerID)
		if err != nil {
			lg.Warn("viewer profile unavailable, using id only", zap.Error(err))
			viewer = &domain.UserSummary{ID: cfg.ViewerID}
		}
	}

	cache, err := thread.NewReplyCache(cfg.ReplyCachePosts)
	if err != nil {
		lg.Fatal("reply cache", zap.Error(err))
	}
	th, err := thread.New(api, thread.Options{
		PostID:            *postID,
		Viewer:            viewer,
		PageSize:          cfg.PageSize,
		RequestTimeout:    cfg.RequestTimeout,
		MaxReplyDepth:     cfg.MaxReplyDepth,
		AlwaysExpandDepth: cfg.AlwaysExpandDepth,
		EagerReplies:      cfg.EagerReplies,
		Search:            *search,
		Status:            *status,
		Cache:             cache,
		Logger:            lg,
		Metrics:           thread.NewMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		lg.Fatal("thread", zap.Error(err))
	}
	defer th.Close()

	th.SetSort(order)
	th.SetFocus(*focus)
	if err := th.Load(ctx, *page); err != nil {
		lg.Fatal("load", zap.Error(err))
	}

	if err := act(ctx, th, *likeID, *replyTo, *text); err != nil {
		lg.Error("action failed", zap.Error(err))
	}

	if *expandAll {
		expand(ctx, th, cfg.MaxReplyDepth)
	}
	if err := th.FetchPending(ctx); err != nil {
		lg.Warn("fetch pending replies", zap.Error(err))
	}
	printThread(os.Stdout, th)

	if *watch > 0 {
		events, err := api.Subscribe(ctx, *postID)
		if err != nil {
			lg.Fatal("subscribe", zap.Error(err))
		}
		wctx, cancel := context.WithTimeout(ctx, *watch)
		defer cancel()
		_ = th.Watch(wctx, events)
		fmt.Fprintln(os.Stdout, "--- after live updates ---")
		printThread(os.Stdout, th)
	}
}

func act(ctx context.Context, th *thread.Thread, likeID, replyTo, text string) error {
	switch {
	case likeID != "":
		outcome, err := th.ToggleLike(ctx, likeID)
		if err != nil {
			return fmt.Errorf("like %s: %w", likeID, err)
		}
		fmt.Printf("like %s: %s\n", likeID, outcome)
	case replyTo != "":
		if err := th.Expand(ctx, replyTo); err != nil {
			return fmt.Errorf("expand %s: %w", replyTo, err)
		}
		c, err := th.Reply(ctx, replyTo, text, nil)
		if err != nil {
			return fmt.Errorf("reply to %s: %w", replyTo, err)
		}
		fmt.Printf("replied: %s\n", c.ID)
	case text != "":
		c, err := th.AddComment(ctx, text, nil)
		if err != nil {
			return fmt.Errorf("comment: %w", err)
		}
		fmt.Printf("commented: %s\n", c.ID)
	}
	return nil
}

// expand раскрывает все свернутые узлы уровень за уровнем.
func expand(ctx context.Context, th *thread.Thread, maxDepth int) {
	for level := 0; level <= maxDepth; level++ {
		changed := false
		for _, row := range th.Rows() {
			if row.State != thread.Collapsed || row.ReplyCount == 0 {
				continue
			}
			if err := th.Expand(ctx, row.Comment.ID); err == nil {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func printThread(w io.Writer, th *thread.Thread) {
	info := th.PageInfo()
	fmt.Fprintf(w, "page %d/%d, %d comments\n", info.Page, info.TotalPages, info.TotalComments)
	rows := th.Rows()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No comments yet")
		return
	}
	for _, row := range rows {
		indent := strings.Repeat("  ", row.Depth)
		c := row.Comment
		name := c.Author.ID()
		if u, ok := c.Author.User(); ok {
			name = u.FullName
		}
		content := c.Content
		if row.Mention != "" {
			content = row.Mention + " " + content
		}
		var flags []string
		if c.Edited {
			flags = append(flags, "edited")
		}
		if row.Pending {
			flags = append(flags, "sending")
		}
		if c.IsLiked {
			flags = append(flags, "liked")
		}
		fmt.Fprintf(w, "%s%s [%s] %s  (%d likes, %s)", indent, name, c.ID, content, c.LikesCount, c.CreatedAt.Format(time.DateTime))
		if len(flags) > 0 {
			fmt.Fprintf(w, " {%s}", strings.Join(flags, ", "))
		}
		fmt.Fprintln(w)
		if row.Label != "" {
			fmt.Fprintf(w, "%s  > %s\n", indent, row.Label)
		}
	}
}
