package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fireflymap/api/pkg/database"
	fferrors "github.com/fireflymap/api/pkg/errors"
	"github.com/fireflymap/api/pkg/testutil"
)

func usernames(users []database.User) []string {
	out := []string{}
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func TestAddFriend_IsSymmetric(t *testing.T) {
	d := testutil.OpenDB(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, d, "ann")
	b := testutil.CreateUser(t, d, "Ben")

	friend, err := database.AddFriend(ctx, d, a.ID, "BEN")
	require.NoError(t, err)
	assert.Equal(t, b.ID, friend.ID)

	fa, err := database.ListFriends(ctx, d, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ben"}, usernames(fa))

	fb, err := database.ListFriends(ctx, d, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann"}, usernames(fb))

	ok, err := database.AreFriends(ctx, d, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var rows int64
	require.NoError(t, d.Model(&database.Friendship{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows, "one undirected edge per pair")
}

func TestAddFriend_RejectsDuplicatesBothWays(t *testing.T) {
	d := testutil.OpenDB(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, d, "ann")
	b := testutil.CreateUser(t, d, "ben")

	_, err := database.AddFriend(ctx, d, a.ID, "ben")
	require.NoError(t, err)

	_, err = database.AddFriend(ctx, d, a.ID, "ben")
	assert.ErrorIs(t, err, fferrors.ErrConflict)

	_, err = database.AddFriend(ctx, d, b.ID, "ann")
	assert.ErrorIs(t, err, fferrors.ErrConflict)
}

func TestAddFriend_NotFound(t *testing.T) {
	d := testutil.OpenDB(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, d, "ann")

	_, err := database.AddFriend(ctx, d, a.ID, "ghost")
	assert.ErrorIs(t, err, fferrors.ErrNotFound)

	_, err = database.AddFriend(ctx, d, a.ID, "ANN")
	assert.ErrorIs(t, err, fferrors.ErrNotFound, "self is excluded from resolution")
}

func TestFriendshipRejectsSelfEdge(t *testing.T) {
	d := testutil.OpenDB(t)
	a := testutil.CreateUser(t, d, "ann")

	err := d.Create(&database.Friendship{UserID: a.ID, FriendID: a.ID}).Error
	assert.Error(t, err)
}

func TestListFriends_ManyEdges(t *testing.T) {
	d := testutil.OpenDB(t)
	ctx := context.Background()
	hub := testutil.CreateUser(t, d, "hub")
	for _, name := range []string{"zed", "amy", "kim"} {
		testutil.CreateUser(t, d, name)
	}
	lonely := testutil.CreateUser(t, d, "lonely")

	// edges created from both sides of the hub
	_, err := database.AddFriend(ctx, d, hub.ID, "zed")
	require.NoError(t, err)
	amy, err := database.GetUserByUsername(ctx, d, "amy")
	require.NoError(t, err)
	_, err = database.AddFriend(ctx, d, amy.ID, "hub")
	require.NoError(t, err)
	_, err = database.AddFriend(ctx, d, hub.ID, "kim")
	require.NoError(t, err)

	friends, err := database.ListFriends(ctx, d, hub.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "kim", "zed"}, usernames(friends))

	friends, err = database.ListFriends(ctx, d, lonely.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestRemoveFriend(t *testing.T) {
	d := testutil.OpenDB(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, d, "ann")
	b := testutil.CreateUser(t, d, "ben")

	_, err := database.AddFriend(ctx, d, a.ID, "ben")
	require.NoError(t, err)

	// removal works from the other side of the edge
	require.NoError(t, database.RemoveFriend(ctx, d, b.ID, a.ID))

	friends, err := database.ListFriends(ctx, d, a.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)

	err = database.RemoveFriend(ctx, d, a.ID, b.ID)
	assert.ErrorIs(t, err, fferrors.ErrNotFound)

	_, err = database.AddFriend(ctx, d, a.ID, "ben")
	assert.NoError(t, err, "can befriend again after removal")
}
