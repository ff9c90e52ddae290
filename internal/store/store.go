package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/hunkim/botmadang-digest/internal/config"
	"github.com/hunkim/botmadang-digest/internal/core"
)

// PostStore is the read/write surface the pipeline needs from the document
// store. The Firestore implementation below is the production one; tests use
// in-memory fakes.
type PostStore interface {
	// PostsSince returns posts created at or after since, newest first.
	PostsSince(ctx context.Context, since time.Time, limit int) ([]core.Post, error)
	// TopPosts returns the top posts by upvote count, no time filter.
	TopPosts(ctx context.Context, limit int) ([]core.Post, error)
	// SaveDigest upserts the finished digest document keyed by its date.
	SaveDigest(ctx context.Context, digest core.Digest) error
}

const (
	postsCollection   = "posts"
	digestsCollection = "digests"
)

// FirestoreStore reads botmadang posts and writes digests to Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to Firestore with the service-account
// credentials assembled by the config.
func NewFirestoreStore(ctx context.Context, cfg *config.Config) (*FirestoreStore, error) {
	creds, err := cfg.ServiceAccountJSON()
	if err != nil {
		return nil, fmt.Errorf("building service account credentials: %w", err)
	}

	client, err := firestore.NewClient(ctx, cfg.Firebase.ProjectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &FirestoreStore{client: client}, nil
}

// Close releases the underlying Firestore connection.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// PostsSince returns posts created at or after since, newest first.
func (s *FirestoreStore) PostsSince(ctx context.Context, since time.Time, limit int) ([]core.Post, error) {
	iter := s.client.Collection(postsCollection).
		Where("created_at", ">=", since).
		OrderBy("created_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	return collectPosts(iter)
}

// TopPosts returns the most-upvoted posts regardless of age.
func (s *FirestoreStore) TopPosts(ctx context.Context, limit int) ([]core.Post, error) {
	iter := s.client.Collection(postsCollection).
		OrderBy("upvotes", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	return collectPosts(iter)
}

// SaveDigest upserts the digest document under digests/{date}.
func (s *FirestoreStore) SaveDigest(ctx context.Context, digest core.Digest) error {
	_, err := s.client.Collection(digestsCollection).Doc(digest.Date).Set(ctx, map[string]any{
		"content":    digest.Content,
		"date":       digest.Date,
		"created_at": digest.CreatedAt,
		"post_count": digest.PostCount,
	})
	if err != nil {
		return fmt.Errorf("saving digest %s: %w", digest.Date, err)
	}
	return nil
}

// CountPosts returns the total number of posts; used by the connection check.
func (s *FirestoreStore) CountPosts(ctx context.Context) (int64, error) {
	results, err := s.client.Collection(postsCollection).
		NewAggregationQuery().
		WithCount("count").
		Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}

	value, ok := results["count"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected aggregation result type %T", results["count"])
	}
	return value.GetIntegerValue(), nil
}

func collectPosts(iter *firestore.DocumentIterator) ([]core.Post, error) {
	var posts []core.Post
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading posts: %w", err)
		}
		posts = append(posts, docToPost(doc.Ref.ID, doc.Data()))
	}
	return posts, nil
}

// docToPost converts a Firestore document into a Post, tolerating missing or
// oddly-typed fields; stored timestamps occasionally vanish, so created_at
// falls back to now rather than the zero time.
func docToPost(id string, data map[string]any) core.Post {
	createdAt, ok := data["created_at"].(time.Time)
	if !ok {
		createdAt = time.Now()
	}

	return core.Post{
		ID:           id,
		Title:        stringField(data, "title"),
		Content:      stringField(data, "content"),
		Submadang:    stringField(data, "submadang"),
		AuthorID:     stringField(data, "author_id"),
		AuthorName:   stringField(data, "author_name"),
		Upvotes:      intField(data, "upvotes"),
		Downvotes:    intField(data, "downvotes"),
		CommentCount: intField(data, "comment_count"),
		CreatedAt:    createdAt,
		URL:          stringField(data, "url"),
	}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
