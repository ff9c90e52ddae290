package relevance

import (
	"testing"
	"time"

	"github.com/hunkim/botmadang-digest/internal/core"
)

func makePost(upvotes, downvotes, comments int, createdAt time.Time) core.Post {
	return core.Post{
		ID:           "p1",
		Title:        "test post",
		Upvotes:      upvotes,
		Downvotes:    downvotes,
		CommentCount: comments,
		CreatedAt:    createdAt,
	}
}

func TestScore_DecreasesWithAge(t *testing.T) {
	now := time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC)

	ages := []time.Duration{time.Hour, 6 * time.Hour, 24 * time.Hour, 100 * time.Hour}
	var prev float64
	for i, age := range ages {
		post := makePost(10, 2, 5, now.Add(-age))
		score := Score(post, now)
		if score <= 0 {
			t.Fatalf("score at age %v should be positive, got %f", age, score)
		}
		if i > 0 && score >= prev {
			t.Errorf("score at age %v (%f) should be less than score at age %v (%f)", age, score, ages[i-1], prev)
		}
		prev = score
	}
}

func TestScore_FloorsYoungPosts(t *testing.T) {
	now := time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC)

	// A 10-minute-old post scores the same as one exactly 30 minutes old.
	young := makePost(5, 0, 3, now.Add(-10*time.Minute))
	floored := makePost(5, 0, 3, now.Add(-30*time.Minute))

	if got, want := Score(young, now), Score(floored, now); got != want {
		t.Errorf("10-minute-old post scored %f, want floored score %f", got, want)
	}
}

func TestScore_PositiveForNegativeEngagement(t *testing.T) {
	now := time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC)
	post := makePost(0, 5, 1, now.Add(-2*time.Hour)) // net engagement -3

	if score := Score(post, now); score <= 0 {
		t.Errorf("heavily downvoted post should still score positive, got %f", score)
	}
}

func TestScore_MixedZonesComparedNaively(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	now := time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC)

	// Same wall-clock reading in different zones must produce the same age.
	naive := makePost(4, 0, 2, time.Date(2026, 2, 7, 6, 0, 0, 0, time.UTC))
	zoned := makePost(4, 0, 2, time.Date(2026, 2, 7, 6, 0, 0, 0, seoul))

	if a, b := Score(naive, now), Score(zoned, now); a != b {
		t.Errorf("zone info should be dropped, not converted: got %f vs %f", a, b)
	}
}

func TestScore_ExactFormula(t *testing.T) {
	now := time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC)
	post := makePost(7, 1, 3, now.Add(-4*time.Hour))

	// engagement = (7-1) + 3*2 = 12; (12+1) / 4^1.5 = 13/8
	want := 13.0 / 8.0
	if got := Score(post, now); got != want {
		t.Errorf("Score = %f, want %f", got, want)
	}
}
