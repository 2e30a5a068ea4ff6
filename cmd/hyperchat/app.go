package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/hyperchat/internal/config"
	"github.com/danmuck/hyperchat/internal/envelope"
	"github.com/danmuck/hyperchat/internal/feed"
	"github.com/danmuck/hyperchat/internal/logging"
)

// post is one -post value in "<tag>:<content>" form.
type post struct {
	variant envelope.Variant
	content string
}

type postList []post

func (p *postList) String() string {
	parts := make([]string, 0, len(*p))
	for _, item := range *p {
		tag, _ := item.variant.Tag()
		parts = append(parts, tag+":"+item.content)
	}
	return strings.Join(parts, ",")
}

func (p *postList) Set(raw string) error {
	tag, content, ok := strings.Cut(raw, ":")
	if !ok {
		return fmt.Errorf("expected <type>:<content>, got %q", raw)
	}
	variant, err := envelope.ParseVariant(strings.TrimSpace(tag))
	if err != nil {
		return err
	}
	*p = append(*p, post{variant: variant, content: content})
	return nil
}

type options struct {
	configPath string
	username   string
	storage    string
	posts      postList
}

func parseArgs(args []string, out io.Writer) (options, *flag.FlagSet, error) {
	var opts options
	fs := flag.NewFlagSet("hyperchat", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "path to a hyperchat TOML config")
	fs.StringVar(&opts.username, "username", "", "display name stamped on posts (default from config, else anonymous)")
	fs.StringVar(&opts.username, "u", "", "shorthand for -username")
	fs.StringVar(&opts.storage, "storage", "", "storage directory (default from config, else ./storage)")
	fs.StringVar(&opts.storage, "s", "", "shorthand for -storage")
	fs.Var(&opts.posts, "post", "append <message|status|microblog>:<content>; repeatable")
	if err := fs.Parse(args); err != nil {
		return options{}, fs, err
	}
	return opts, fs, nil
}

func resolveConfig(opts options) (config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if v := strings.TrimSpace(opts.username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(opts.storage); v != "" {
		cfg.Storage = v
		cfg.Resolve()
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config invalid: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, _, err := parseArgs(args, out)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	logger := logging.New("hyperchat")
	printBanner(out, cfg)

	log, err := feed.Open(ctx, cfg.Feed)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := log.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("close feed")
		}
	}()
	logger.Info().
		Str("backend", cfg.Feed.Backend).
		Str("feed", log.ID()).
		Msg("feed opened")

	posts := opts.posts
	if len(posts) == 0 {
		posts = samplePosts()
	}
	if err := demo(ctx, out, log, cfg, posts); err != nil {
		return err
	}
	printRoadmap(out)
	return nil
}

func samplePosts() postList {
	return postList{
		{variant: envelope.Chat, content: "Hello from Rust!"},
		{variant: envelope.Status, content: "Building Hyperchat in Go"},
		{variant: envelope.Microblog, content: "P2P is the future of communication!"},
	}
}

// demo appends each post and prints the envelopes read back from the feed.
func demo(ctx context.Context, out io.Writer, log feed.Log, cfg config.Config, posts postList) error {
	fmt.Fprintln(out, "Demonstrating Hyperchat Message System:")
	fmt.Fprintln(out)

	start, err := log.Len(ctx)
	if err != nil {
		return err
	}
	writer := feed.NewWriter(log)
	appended := 0
	for i, p := range posts {
		env := envelope.New(p.variant, p.content, cfg.Username)
		if _, err := writer.Append(ctx, env); err != nil {
			var verr *envelope.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintf(out, "Message %d validation failed: %v\n", i+1, verr)
				continue
			}
			return err
		}
		appended++
	}

	entries, err := feed.ReadEnvelopes(ctx, log, feed.ReadOptions{Start: start, Limit: cfg.Read.Limit})
	if err != nil {
		return err
	}
	for i, entry := range entries {
		env := entry.Envelope
		fmt.Fprintf(out, "Message %d (seq %d):\n", i+1, entry.Seq)
		fmt.Fprintf(out, "   Type: %s\n", env.Variant())
		fmt.Fprintf(out, "   Content: %s\n", env.Content())
		fmt.Fprintf(out, "   Author: %s\n", env.Author())
		fmt.Fprintf(out, "   Timestamp: %d\n", env.CreatedAt())
		fmt.Fprintln(out)
	}

	if appended > 0 {
		fmt.Fprintln(out, "Message system working correctly!")
	}
	fmt.Fprintln(out)
	return nil
}

func printBanner(out io.Writer, cfg config.Config) {
	fmt.Fprintln(out, "╔════════════════════════════════════════╗")
	fmt.Fprintln(out, "║      HYPERCHAT (Go Implementation)     ║")
	fmt.Fprintln(out, "╚════════════════════════════════════════╝")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Username: %s\n", cfg.Username)
	fmt.Fprintf(out, "Storage: %s\n", cfg.Storage)
	fmt.Fprintf(out, "Feed backend: %s\n\n", cfg.Feed.Backend)
	fmt.Fprintln(out, "NOTE: peer-to-peer replication is not implemented yet.")
	fmt.Fprintln(out, "Entries are written to the local feed only.")
	fmt.Fprintln(out)
}

func printRoadmap(out io.Writer) {
	fmt.Fprintln(out, "To implement full P2P functionality, the remaining work is:")
	fmt.Fprintln(out, "  1. Peer discovery and transport")
	fmt.Fprintln(out, "  2. Following remote feeds")
	fmt.Fprintln(out, "  3. Feed replication")
}
