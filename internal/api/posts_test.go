package api_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sidequest-sync/internal/api"
	"github.com/d60-Lab/sidequest-sync/internal/model"
)

func TestUploadPostAndFeed(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	alice := b.signup(t, "up_alice")
	b.tokens.token = alice.Token

	quest, err := b.client.CreateQuest(ctx, "Handstand in the park", "🤸")
	require.NoError(t, err)

	post, err := b.client.UploadPost(ctx, quest.ID, "proof.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, quest.ID, post.QuestID)
	assert.Equal(t, "image", post.MediaType)
	assert.NotEmpty(t, post.MediaURL)
	assert.Equal(t, "Handstand in the park", post.QuestTitle)

	feed, err := b.client.ListPosts(ctx)
	require.NoError(t, err)
	var found bool
	for _, p := range feed {
		if p.ID == post.ID {
			found = true
		}
	}
	assert.True(t, found)

	// 不存在的任务不能挂帖
	_, err = b.client.UploadPost(ctx, "no-such-quest", "proof.jpg", strings.NewReader("x"))
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestPostVoteAndOwnershipDelete(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	alice := b.signup(t, "pd_alice")
	bob := b.signup(t, "pd_bob")

	var postID string
	b.asUser(alice.Token, func() {
		quest, err := b.client.CreateQuest(ctx, "Bake sourdough", "🍞")
		require.NoError(t, err)
		post, err := b.client.UploadPost(ctx, quest.ID, "loaf.jpg", strings.NewReader("crumb"))
		require.NoError(t, err)
		postID = post.ID
	})

	b.asUser(bob.Token, func() {
		voted, err := b.client.VotePost(ctx, postID, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, voted.Votes)
		assert.Equal(t, model.Upvote, voted.MyVote)

		// 帖子归属校验：别人的帖删不掉
		err = b.client.DeletePost(ctx, postID)
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
	})

	b.asUser(alice.Token, func() {
		require.NoError(t, b.client.DeletePost(ctx, postID))
		err := b.client.DeletePost(ctx, postID)
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 404, apiErr.Status)
	})
}

func TestCommentsThread(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	alice := b.signup(t, "cm_alice")
	bob := b.signup(t, "cm_bob")

	var postID string
	b.asUser(alice.Token, func() {
		quest, err := b.client.CreateQuest(ctx, "Sketch a stranger", "✏️")
		require.NoError(t, err)
		post, err := b.client.UploadPost(ctx, quest.ID, "sketch.jpg", strings.NewReader("graphite"))
		require.NoError(t, err)
		postID = post.ID
	})

	b.asUser(bob.Token, func() {
		comment, err := b.client.CreateComment(ctx, postID, "  nice lines  ")
		require.NoError(t, err)
		assert.Equal(t, "nice lines", comment.Content)
		assert.Equal(t, "cm_bob", comment.Username)

		// 纯空白评论拒收
		_, err = b.client.CreateComment(ctx, postID, "   ")
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.Status)

		comments, err := b.client.ListComments(ctx, postID)
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, "nice lines", comments[0].Content)
	})
}

func TestUserProfileAndPfp(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	alice := b.signup(t, "pf_alice")
	b.tokens.token = alice.Token

	me, err := b.client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pf_alice", me.Username)
	assert.Empty(t, me.PfpURL)

	url, err := b.client.UploadPfp(ctx, "face.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	byName, err := b.client.UserByUsername(ctx, "pf_alice")
	require.NoError(t, err)
	assert.Equal(t, url, byName.PfpURL)

	_, err = b.client.UserByUsername(ctx, "pf_nobody")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestConstellationRoundTrip(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	alice := b.signup(t, "cs_alice")
	b.tokens.token = alice.Token

	// 从未保存过 → 空布局
	layout, err := b.client.ConstellationLayout(ctx)
	require.NoError(t, err)
	var empty struct {
		Badges []any `json:"badges"`
		Lines  []any `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(layout, &empty))
	assert.Empty(t, empty.Badges)

	saved := json.RawMessage(`{"badges":[{"quest_id":"q1","x":0.2,"y":0.8}],"lines":[]}`)
	require.NoError(t, b.client.SaveConstellationLayout(ctx, saved))

	layout, err = b.client.ConstellationLayout(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(saved), string(layout))

	// 覆盖保存
	saved = json.RawMessage(`{"badges":[],"lines":[]}`)
	require.NoError(t, b.client.SaveConstellationLayout(ctx, saved))
	layout, err = b.client.ConstellationLayout(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(saved), string(layout))
}
