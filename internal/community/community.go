// Package community holds the farmers' discussion board.
package community

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// DefaultAuthor signs posts submitted without a name
const DefaultAuthor = "You"

// ErrEmptyPost is returned when a post has no content
var ErrEmptyPost = errors.New("post content is empty")

// Post is one board message
type Post struct {
	ID       int64     `json:"id"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	PostedAt time.Time `json:"postedAt"`
	Likes    int       `json:"likes"`
	Comments int       `json:"comments"`
}

// Board keeps posts newest first. It is safe for concurrent use.
type Board struct {
	mu    sync.RWMutex
	posts []Post
	now   func() time.Time
}

// NewBoard returns a board seeded with posts, which must be newest first
func NewBoard(posts []Post, now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{posts: append([]Post(nil), posts...), now: now}
}

// SampleBoard returns the built-in sample posts dated relative to now
func SampleBoard(now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	t := now()
	return NewBoard([]Post{
		{
			ID: 1, Author: "John Mwangi", PostedAt: t.Add(-2 * time.Hour), Likes: 5, Comments: 3,
			Content: "Has anyone experienced yellow spots on maize leaves? Looking for advice.",
		},
		{
			ID: 2, Author: "Sarah Ochieng", PostedAt: t.Add(-24 * time.Hour), Likes: 12, Comments: 7,
			Content: "Great app! Helped me identify tomato blight early. Saved my crop!",
		},
		{
			ID: 3, Author: "David Kamau", PostedAt: t.Add(-72 * time.Hour), Likes: 8, Comments: 11,
			Content: "Best practices for coffee rust prevention? Any organic solutions?",
		},
	}, now)
}

// Posts returns a copy of the board, newest first
func (b *Board) Posts() []Post {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Post{}, b.posts...)
}

// Add puts a new post at the top of the board. The id is the current
// time in milliseconds, bumped past the newest id when the clock has not
// moved on.
func (b *Board) Add(author, content string) (Post, error) {
	if strings.TrimSpace(content) == "" {
		return Post{}, ErrEmptyPost
	}
	if strings.TrimSpace(author) == "" {
		author = DefaultAuthor
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	id := now.UnixMilli()
	for _, p := range b.posts {
		if p.ID >= id {
			id = p.ID + 1
		}
	}

	post := Post{ID: id, Author: author, Content: content, PostedAt: now}
	b.posts = append([]Post{post}, b.posts...)
	return post, nil
}
