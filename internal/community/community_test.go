package community

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestSampleBoard(t *testing.T) {
	posts := SampleBoard(clock).Posts()
	require.Len(t, posts, 3)
	assert.Equal(t, "John Mwangi", posts[0].Author)
	assert.Equal(t, fixedNow.Add(-2*time.Hour), posts[0].PostedAt)
	assert.Equal(t, 12, posts[1].Likes)
}

func TestAddPrependsPost(t *testing.T) {
	b := SampleBoard(clock)

	p, err := b.Add("", "Cassava leaves curling after the rains, any ideas?")
	require.NoError(t, err)
	assert.Equal(t, Post{
		ID:       fixedNow.UnixMilli(),
		Author:   DefaultAuthor,
		Content:  "Cassava leaves curling after the rains, any ideas?",
		PostedAt: fixedNow,
	}, p)

	q, err := b.Add("Grace N.", "Same here in Central.")
	require.NoError(t, err)
	assert.Equal(t, p.ID+1, q.ID)

	posts := b.Posts()
	require.Len(t, posts, 5)
	assert.Equal(t, q, posts[0])
	assert.Equal(t, p, posts[1])
}

func TestAddRejectsBlankContent(t *testing.T) {
	b := SampleBoard(clock)
	_, err := b.Add("John", " \n\t")
	assert.ErrorIs(t, err, ErrEmptyPost)
	assert.Len(t, b.Posts(), 3)
}

func TestPostsIsACopy(t *testing.T) {
	b := SampleBoard(clock)
	posts := b.Posts()
	posts[0].Content = "edited"
	assert.NotEqual(t, "edited", b.Posts()[0].Content)
}

func TestConcurrentAddsGetDistinctIDs(t *testing.T) {
	b := NewBoard(nil, clock)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Add("", "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, p := range b.Posts() {
		assert.False(t, seen[p.ID], "duplicate id %d", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, seen, 20)
}
