package database

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbadmin/internal/admin"
)

const seedData = `{
	"posts": {
		"p1": {"uid": "u1", "author": "ada", "title": "Engines", "starCount": 0, "stars": {"u2": true, "u3": true}, "color": "red"},
		"p2": {"uid": "u2", "author": "grace", "title": "Compilers", "starCount": 7},
		"p3": {"uid": "u1", "author": "ada", "title": "Notes", "starCount": 3}
	},
	"user-posts": {
		"u1": {"p1": {"uid": "u1", "author": "ada", "title": "Engines", "starCount": 0, "stars": {"u2": true, "u3": true}}}
	},
	"users": {
		"u1": {"username": "ada", "email": "ada@example.com"},
		"u2": {"username": "grace"},
		"u3": {"username": "alan", "email": "alan@example.com"}
	}
}`

func TestStarCountUpdate(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		expected string
	}{
		{"counts stars", `{"uid":"u1","starCount":9,"stars":{"a":true,"b":true}}`, `{"uid":"u1","starCount":2,"stars":{"a":true,"b":true}}`},
		{"no stars", `{"uid":"u1","starCount":4}`, `{"uid":"u1","starCount":0}`},
		{"keeps unknown fields", `{"color":"red","stars":{"a":true}}`, `{"color":"red","starCount":1,"stars":{"a":true}}`},
		{"missing post", `null`, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, err := decodeJSON([]byte(tt.current))
			require.NoError(t, err)

			next, err := StarCountUpdate(NewSnapshot("p", current))
			require.NoError(t, err)

			encoded, err := json.Marshal(next)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(encoded))
		})
	}
}

func TestStarCountUpdate_IsRepeatable(t *testing.T) {
	current, err := decodeJSON([]byte(`{"stars":{"a":true,"b":true,"c":true}}`))
	require.NoError(t, err)

	first, err := StarCountUpdate(NewSnapshot("p", current))
	require.NoError(t, err)
	second, err := StarCountUpdate(NewSnapshot("p", current))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecountStars(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t, seedData)

	require.NoError(t, RecountStars(ctx, store, "p1", "u1"))

	post, err := LoadPost(ctx, store, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, post.StarCount)
	assert.Equal(t, "p1", post.ID)

	var userPost Post
	require.NoError(t, store.Get(ctx, "user-posts/u1/p1", &userPost))
	assert.Equal(t, 2, userPost.StarCount)
	assert.Equal(t, "red", store.value("posts/p1/color"))
}

func TestLoadPost_Missing(t *testing.T) {
	store := newMemStore(t, seedData)

	_, err := LoadPost(context.Background(), store, "nope")
	assert.ErrorIs(t, err, admin.ErrInvalidArgument)
	_, err = LoadPost(context.Background(), store, "")
	assert.ErrorIs(t, err, admin.ErrInvalidArgument)
}

func TestTransaction_OverlappingWritesConverge(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t, `{"counter": {"value": 5}}`)

	addOne := func(node TransactionNode) (interface{}, error) {
		var c struct{ Value int }
		if err := node.Unmarshal(&c); err != nil {
			return nil, err
		}
		return map[string]int{"value": c.Value + 1}, nil
	}
	double := func(node TransactionNode) (interface{}, error) {
		var c struct{ Value int }
		if err := node.Unmarshal(&c); err != nil {
			return nil, err
		}
		return map[string]int{"value": c.Value * 2}, nil
	}

	// double commits while addOne is between its read and its write
	store.beforeCommit = func() {
		require.NoError(t, store.Transaction(ctx, "counter", double))
	}
	require.NoError(t, store.Transaction(ctx, "counter", addOne))

	var result struct{ Value int }
	require.NoError(t, store.Get(ctx, "counter", &result))
	assert.Equal(t, 11, result.Value, "double then addOne")
	assert.Equal(t, int32(3), store.attempts.Load(), "addOne retried once")
}

func TestTransaction_StarAddedDuringRecount(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t, seedData)

	store.beforeCommit = func() {
		require.NoError(t, store.Set(ctx, "posts/p1/stars/u4", true))
	}
	require.NoError(t, store.Transaction(ctx, "posts/p1", StarCountUpdate))

	post, err := LoadPost(ctx, store, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, post.StarCount)
	assert.Len(t, post.Stars, 3)
}

func TestTransaction_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t, "")

	increment := func(node TransactionNode) (interface{}, error) {
		var n int
		if err := node.Unmarshal(&n); err != nil {
			return nil, err
		}
		return n + 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Transaction(ctx, "count", increment))
		}()
	}
	wg.Wait()

	var n int
	require.NoError(t, store.Get(ctx, "count", &n))
	assert.Equal(t, 20, n)
}

func TestTopPosts_MostStarredFirst(t *testing.T) {
	store := newMemStore(t, seedData)

	posts, err := TopPosts(context.Background(), store, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, "Compilers", posts[0].Title)
	assert.Equal(t, "p3", posts[1].ID)
}

func TestAllUsers(t *testing.T) {
	store := newMemStore(t, seedData)

	users, err := AllUsers(context.Background(), store)
	require.NoError(t, err)
	assert.Len(t, users, 3)
	assert.Equal(t, "ada@example.com", users["u1"].Email)

	empty := newMemStore(t, "")
	users, err = AllUsers(context.Background(), empty)
	require.NoError(t, err)
	assert.Empty(t, users)
}
