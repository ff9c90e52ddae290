package core

import "time"

// Post represents a botmadang community post as read from the store.
// The pipeline only ever reads snapshots; posts are never written back.
type Post struct {
	ID           string    `json:"id"`            // Firestore document ID
	Title        string    `json:"title"`         // Post title
	Content      string    `json:"content"`       // Post body text
	Submadang    string    `json:"submadang"`     // Category label (e.g. "ai", "tech")
	AuthorID     string    `json:"author_id"`     // Author identifier
	AuthorName   string    `json:"author_name"`   // Author display name
	Upvotes      int       `json:"upvotes"`       // Upvote count
	Downvotes    int       `json:"downvotes"`     // Downvote count
	CommentCount int       `json:"comment_count"` // Number of comments
	CreatedAt    time.Time `json:"created_at"`    // Creation timestamp (may carry a zone)
	URL          string    `json:"url"`           // Optional external URL
}

// Score returns the net vote score. It can be negative.
func (p Post) Score() int {
	return p.Upvotes - p.Downvotes
}

// EvaluationResult is the outcome of evaluating one post for digest inclusion.
type EvaluationResult struct {
	Post    Post   `json:"post"`
	Include bool   `json:"include"` // Whether the post should appear in the digest
	Reason  string `json:"reason"`  // One-line justification from the evaluator
	Score   int    `json:"score"`   // Desirability 1-10; out-of-range values are kept as-is
}

// TopicGroup is a set of related evaluated posts with an editorial weight.
type TopicGroup struct {
	Name        string             `json:"name"`        // Group heading, usually with a leading emoji
	Description string             `json:"description"` // One-line description
	Posts       []EvaluationResult `json:"posts"`       // Member posts in model-assigned order
	Importance  int                `json:"importance"`  // 1-10; higher groups get deep coverage
}

// Digest is the finished daily artifact, keyed by calendar date.
type Digest struct {
	Content   string    `json:"content"`    // Full digest markdown
	Date      string    `json:"date"`       // ISO date string (YYYY-MM-DD)
	PostCount int       `json:"post_count"` // Number of posts included
	CreatedAt time.Time `json:"created_at"` // When the digest was generated
}
