// Command main fills the blog database with demo posts.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"quickblog/internal/bootstrap"
	"quickblog/internal/config"
	"quickblog/internal/middleware"
	"quickblog/internal/observability"
	"quickblog/internal/seed"
)

func main() {
	numPosts := flag.Int("posts", 25, "Number of posts to create")
	published := flag.Float64("published", 0.75, "Share of posts created published (0..1)")
	categories := flag.String("categories", "", "Comma-separated categories to draw from")
	shouldClean := flag.Bool("clean", false, "Delete existing posts before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.SetLogger(middleware.Logger)

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close() }()

	var cats []string
	for _, c := range strings.Split(*categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}

	posts, err := seed.Seed(ctx, rt.DB, rt.PostService(cfg), seed.Options{
		NumPosts:       *numPosts,
		PublishedRatio: *published,
		Categories:     cats,
		ShouldClean:    *shouldClean,
		RandSeed:       *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed after %d posts: %v", len(posts), err)
	}

	for _, p := range posts {
		log.Printf("%-8s %s", publishedLabel(p.IsPublished), p.Slug)
	}
}

func publishedLabel(published bool) string {
	if published {
		return "live"
	}
	return "draft"
}
