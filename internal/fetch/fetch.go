package fetch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hunkim/botmadang-digest/internal/config"
	"github.com/hunkim/botmadang-digest/internal/core"
	"github.com/hunkim/botmadang-digest/internal/relevance"
	"github.com/hunkim/botmadang-digest/internal/store"
)

// topPostsLimit caps the upvote-ordered query that catches popular posts the
// recency window would miss.
const topPostsLimit = 50

// maxTopPostAge excludes stale viral posts: a top-upvoted post older than
// this relative to the target date is dropped even if it still ranks first
// by votes.
const maxTopPostAge = 7 * 24 * time.Hour

// Candidates fetches and ranks the posts eligible for the digest of
// targetDate.
//
// The digest window ends at 08:00 on the target date and reaches back
// cfg.Digest.Hours. Two queries are merged: recent posts (newest first) and
// all-time top posts by upvotes. The recency copy wins on ID collisions.
// Top-only posts enter the pool only while younger than a week. The merged
// pool is filtered by the hot-score floor, scored at the window end rather
// than wall-clock now so reruns for the same date rank identically, then
// sorted by score descending and truncated.
//
// Store errors are fatal for the run. An empty result is a valid outcome
// meaning "no digest today".
func Candidates(ctx context.Context, posts store.PostStore, cfg *config.Config, targetDate time.Time) ([]core.Post, error) {
	windowEnd := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 8, 0, 0, 0, targetDate.Location())
	windowStart := windowEnd.Add(-time.Duration(cfg.Digest.Hours) * time.Hour)

	recent, err := posts.PostsSince(ctx, windowStart, cfg.Digest.MaxPostsToEvaluate)
	if err != nil {
		return nil, fmt.Errorf("fetching recent posts: %w", err)
	}

	top, err := posts.TopPosts(ctx, topPostsLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching top posts: %w", err)
	}

	merged := make(map[string]core.Post, len(recent)+len(top))
	order := make([]string, 0, len(recent)+len(top))
	for _, p := range recent {
		if _, seen := merged[p.ID]; !seen {
			merged[p.ID] = p
			order = append(order, p.ID)
		}
	}
	for _, p := range top {
		if _, seen := merged[p.ID]; seen {
			continue
		}
		if age(targetDate, p.CreatedAt) > maxTopPostAge {
			continue
		}
		merged[p.ID] = p
		order = append(order, p.ID)
	}

	var candidates []core.Post
	for _, id := range order {
		p := merged[id]
		if relevance.Score(p, windowEnd) >= cfg.Digest.MinHotScore {
			candidates = append(candidates, p)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return relevance.Score(candidates[i], windowEnd) > relevance.Score(candidates[j], windowEnd)
	})

	if len(candidates) > cfg.Digest.MaxPostsToEvaluate {
		candidates = candidates[:cfg.Digest.MaxPostsToEvaluate]
	}
	return candidates, nil
}

// age compares the two timestamps naively, dropping zone info on both sides.
func age(target, created time.Time) time.Duration {
	naive := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	}
	return naive(target).Sub(naive(created))
}

// FormatPostSummary renders one post as the numbered block every LLM stage
// feeds into its prompt. Index is 1-based so the model can reference posts
// back by number.
func FormatPostSummary(post core.Post, index int) string {
	content := post.Content
	if content == "" {
		content = "(내용 없음)"
	} else if runes := []rune(content); len(runes) > 300 {
		content = string(runes[:300])
	}

	return fmt.Sprintf(`[%d] 제목: %s
작성자: %s
마당: %s
추천: %d / 비추: %d / 댓글: %d
내용: %s...`,
		index, post.Title, post.AuthorName, post.Submadang,
		post.Upvotes, post.Downvotes, post.CommentCount, content)
}
