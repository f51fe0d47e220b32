// Package publish posts segments as a reply chain, deleting everything it
// created if the chain cannot be completed.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/threadpost/internal/frontmatter"
	"github.com/dgallion1/threadpost/internal/mastodon"
)

// Poster creates and deletes statuses. *mastodon.Client satisfies it.
type Poster interface {
	Deleter
	PostStatus(ctx context.Context, req mastodon.StatusRequest) (*mastodon.Status, error)
}

// Config holds the fixed attributes of every post in a thread.
type Config struct {
	Language        string
	ContentType     string
	RootVisibility  string
	ReplyVisibility string
}

func DefaultConfig() Config {
	return Config{
		Language:        "en",
		ContentType:     "text/plain",
		RootVisibility:  "public",
		ReplyVisibility: "unlisted",
	}
}

// Publisher posts threads.
type Publisher struct {
	poster Poster
	cfg    Config
	log    *slog.Logger
}

func New(poster Poster, cfg Config, log *slog.Logger) *Publisher {
	def := DefaultConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.ContentType == "" {
		cfg.ContentType = def.ContentType
	}
	if cfg.RootVisibility == "" {
		cfg.RootVisibility = def.RootVisibility
	}
	if cfg.ReplyVisibility == "" {
		cfg.ReplyVisibility = def.ReplyVisibility
	}
	return &Publisher{poster: poster, cfg: cfg, log: log}
}

// Error reports the post that failed and what the rollback left behind.
type Error struct {
	Index    int // 1-based position of the post that failed.
	Total    int
	Err      error
	Orphaned []string // Ids the rollback could not delete.
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("publish post %d/%d: %s", e.Index, e.Total, e.Err)
	if len(e.Orphaned) > 0 {
		msg += fmt.Sprintf(" (rollback left %d posts: %v)", len(e.Orphaned), e.Orphaned)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Publish posts texts in order, each replying to the one before. The
// first post uses the root visibility and later posts the reply
// visibility; the content warning, if any, goes on every post. If any
// post fails, the posts already created by this call are deleted before
// Publish returns a *Error.
func (p *Publisher) Publish(ctx context.Context, texts []string, opts frontmatter.Options) (statuses []mastodon.Status, err error) {
	guard := NewGuard(p.poster, p.log)
	defer func() {
		report := guard.Release(ctx)
		var pubErr *Error
		if errors.As(err, &pubErr) {
			pubErr.Orphaned = report.Failed
		}
	}()

	language := p.cfg.Language
	if opts.Language != "" {
		language = opts.Language
	}
	rootVisibility := p.cfg.RootVisibility
	if opts.Visibility != "" {
		rootVisibility = opts.Visibility
	}
	replyVisibility := p.cfg.ReplyVisibility
	if rootVisibility == "private" {
		// Replies must not be more visible than the thread they belong to.
		replyVisibility = "private"
	}

	var lastID string
	for i, text := range texts {
		req := mastodon.StatusRequest{
			Status:      text,
			SpoilerText: opts.ContentWarning,
			Visibility:  replyVisibility,
			Language:    language,
			ContentType: p.cfg.ContentType,
		}
		if lastID == "" {
			req.Visibility = rootVisibility
		} else {
			req.InReplyToID = lastID
		}

		st, err := p.poster.PostStatus(ctx, req)
		if err != nil {
			return nil, &Error{Index: i + 1, Total: len(texts), Err: err}
		}
		guard.Add(st.ID)
		lastID = st.ID
		statuses = append(statuses, *st)
		p.log.Info("post created", "post", i+1, "total", len(texts), "id", st.ID, "uri", st.URI)
	}

	guard.Disarm()
	return statuses, nil
}
