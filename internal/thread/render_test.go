package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

func view(c *domain.Comment, state NodeState, count int, children ...NodeView) NodeView {
	return NodeView{Comment: *c, State: state, Count: count, Children: children}
}

func TestRender_Labels(t *testing.T) {
	p := Policy{MaxReplyDepth: 3, AlwaysExpandDepth: 2, ViewerID: me.ID}

	tests := []struct {
		name  string
		state NodeState
		count int
		want  string
	}{
		{"many", Collapsed, 4, "View 4 replies"},
		{"one", Collapsed, 1, "View 1 reply"},
		{"known zero", Collapsed, 0, ""},
		{"loading", Loading, 2, "Loading replies..."},
		{"no replies", NoReplies, 0, "No replies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Render([]NodeView{view(rootComment("r", alice, 0), tt.state, tt.count)}, p)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Label)
		})
	}
}

func TestRender_DescendsOnlyIntoExpanded(t *testing.T) {
	p := Policy{MaxReplyDepth: 3, AlwaysExpandDepth: 2}
	child := replyComment("c", "r", bob, 1)
	child.Depth = 1

	collapsed := Render([]NodeView{view(rootComment("r", alice, 0), Collapsed, 1, view(child, Collapsed, 0))}, p)
	expanded := Render([]NodeView{view(rootComment("r", alice, 0), Expanded, 1, view(child, Collapsed, 0))}, p)

	assert.Len(t, collapsed, 1)
	require.Len(t, expanded, 2)
	assert.Equal(t, "Hide replies", expanded[0].Label)
	assert.Equal(t, 1, expanded[1].Depth)
}

func TestRender_Permissions(t *testing.T) {
	p := Policy{MaxReplyDepth: 3, AlwaysExpandDepth: 2, ViewerID: me.ID}
	mine := rootComment("m", me, 0)
	deep := replyComment("d", "x", alice, 0)
	deep.Depth = 3
	deep.ReplyTo = &domain.UserRef{ID: bob.ID, Username: bob.Username}
	pending := rootComment(tempIDPrefix+"1", me, 0)

	rows := Render([]NodeView{
		view(mine, Collapsed, 0),
		view(deep, Expanded, 0),
		view(pending, Collapsed, 0),
	}, p)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].CanEdit)
	assert.False(t, rows[0].CanLike)
	assert.True(t, rows[0].CanReply)

	assert.True(t, rows[1].CanLike)
	assert.False(t, rows[1].CanReply)
	assert.False(t, rows[1].Collapsible)
	assert.Equal(t, "@bob", rows[1].Mention)
	assert.Empty(t, rows[1].Label)

	assert.True(t, rows[2].Pending)
	assert.False(t, rows[2].CanReply)
	assert.False(t, rows[2].CanEdit)
}

func TestRender_NeedsFetch(t *testing.T) {
	p := Policy{MaxReplyDepth: 3, AlwaysExpandDepth: 2}
	deep := replyComment("d", "x", alice, 0)
	deep.Depth = 3

	rows := Render([]NodeView{view(deep, Expanded, 2)}, p)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].NeedsFetch)

	v := view(deep, Expanded, 2)
	v.Fetched = true
	assert.False(t, Render([]NodeView{v}, p)[0].NeedsFetch)

	// один свой ответ из двух: серверный еще не загружен
	own := replyComment("o", "d", me, 1)
	own.Depth = 4
	assert.True(t, Render([]NodeView{view(deep, Expanded, 2, view(own, Expanded, 0))}, p)[0].NeedsFetch)
	assert.False(t, Render([]NodeView{view(deep, Expanded, 1, view(own, Expanded, 0))}, p)[0].NeedsFetch)
}

func TestRender_AnonymousViewerGetsNoActions(t *testing.T) {
	rows := Render([]NodeView{view(rootComment("r", alice, 0), Collapsed, 0)}, Policy{MaxReplyDepth: 3, AlwaysExpandDepth: 2})

	require.Len(t, rows, 1)
	assert.False(t, rows[0].CanReply)
	assert.False(t, rows[0].CanLike)
	assert.False(t, rows[0].CanEdit)
}
