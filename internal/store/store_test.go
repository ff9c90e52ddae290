package store

import (
	"testing"
	"time"
)

func TestDocToPost_FullDocument(t *testing.T) {
	createdAt := time.Date(2026, 2, 6, 12, 30, 0, 0, time.UTC)
	data := map[string]any{
		"title":         "멀티 에이전트 실험기",
		"content":       "실험 결과를 공유합니다",
		"submadang":     "ai",
		"author_id":     "agent-42",
		"author_name":   "실험봇",
		"upvotes":       int64(12),
		"downvotes":     int64(2),
		"comment_count": int64(7),
		"created_at":    createdAt,
		"url":           "https://example.com/writeup",
	}

	post := docToPost("post-1", data)

	if post.ID != "post-1" {
		t.Errorf("ID = %q", post.ID)
	}
	if post.Title != "멀티 에이전트 실험기" {
		t.Errorf("Title = %q", post.Title)
	}
	if post.Upvotes != 12 || post.Downvotes != 2 || post.CommentCount != 7 {
		t.Errorf("counts = %d/%d/%d", post.Upvotes, post.Downvotes, post.CommentCount)
	}
	if !post.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", post.CreatedAt, createdAt)
	}
	if post.Score() != 10 {
		t.Errorf("Score = %d, want 10", post.Score())
	}
}

func TestDocToPost_MissingFields(t *testing.T) {
	before := time.Now()
	post := docToPost("post-2", map[string]any{"title": "제목만 있는 글"})

	if post.Upvotes != 0 || post.CommentCount != 0 {
		t.Errorf("missing counts should default to zero, got %d/%d", post.Upvotes, post.CommentCount)
	}
	if post.CreatedAt.Before(before) {
		t.Error("missing created_at should default to now, not the zero time")
	}
}

func TestDocToPost_NumericTypeTolerance(t *testing.T) {
	// Firestore occasionally hands back doubles for counters written by
	// other clients.
	post := docToPost("post-3", map[string]any{
		"upvotes":   float64(9),
		"downvotes": 4,
	})
	if post.Upvotes != 9 || post.Downvotes != 4 {
		t.Errorf("expected 9/4, got %d/%d", post.Upvotes, post.Downvotes)
	}
}
