package relevance

import (
	"math"
	"time"

	"github.com/hunkim/botmadang-digest/internal/core"
)

// minAgeHours floors post age so posts younger than 30 minutes don't blow up
// the decay denominator.
const minAgeHours = 0.5

// Score computes the recency-decayed engagement score used to rank digest
// candidates. It matches the hot-score formula used by the botmadang
// frontend:
//
//	(score + comment_count*2 + 1) / age_hours^1.5
//
// Timestamps from different services disagree about zone info, so both sides
// are stripped to naive wall-clock time before subtraction rather than
// converted. The +1 keeps the numerator positive even for downvoted posts,
// so every post gets a well-defined positive score.
func Score(post core.Post, now time.Time) float64 {
	age := stripZone(now).Sub(stripZone(post.CreatedAt))

	ageHours := age.Hours()
	if ageHours < minAgeHours {
		ageHours = minAgeHours
	}

	engagement := float64(post.Score() + post.CommentCount*2)
	return (engagement + 1) / math.Pow(ageHours, 1.5)
}

// stripZone drops the location while keeping the wall-clock reading.
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
