package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

func ids(list []*domain.Comment) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}

func TestMergeReplies_DedupesAndSortsNewestFirst(t *testing.T) {
	local := []*domain.Comment{replyComment("r3", "p", me, 30)}
	fetched := []*domain.Comment{
		replyComment("r1", "p", alice, 10),
		replyComment("r3", "p", me, 30),
		replyComment("r2", "p", bob, 20),
	}

	m := MergeReplies(local, fetched, 3)

	assert.Equal(t, []string{"r3", "r2", "r1"}, ids(m.Replies))
	assert.Equal(t, 3, m.Count)
}

func TestMergeReplies_PrefersLocalCopy(t *testing.T) {
	mine := replyComment("r1", "p", me, 10)
	mine.LikesCount = 7
	server := replyComment("r1", "p", me, 10)

	m := MergeReplies([]*domain.Comment{mine}, []*domain.Comment{server}, 1)

	require.Len(t, m.Replies, 1)
	assert.Same(t, mine, m.Replies[0])
}

func TestMergeReplies_EmptyServerKeepsLocal(t *testing.T) {
	local := []*domain.Comment{replyComment("r1", "p", me, 10)}

	m := MergeReplies(local, nil, 0)

	assert.Equal(t, []string{"r1"}, ids(m.Replies))
	assert.Equal(t, 1, m.Count)
}

func TestMergeReplies_CountIsMaxOfServerAndMerged(t *testing.T) {
	fetched := []*domain.Comment{replyComment("r1", "p", alice, 10)}

	assert.Equal(t, 5, MergeReplies(nil, fetched, 5).Count)
	assert.Equal(t, 1, MergeReplies(nil, fetched, 0).Count)
}

func TestMergeReplies_Idempotent(t *testing.T) {
	local := []*domain.Comment{replyComment("r4", "p", me, 40)}
	fetched := []*domain.Comment{
		replyComment("r1", "p", alice, 10),
		replyComment("r2", "p", bob, 20),
	}

	once := MergeReplies(local, fetched, 2)
	twice := MergeReplies(once.Replies, fetched, 2)

	assert.Equal(t, ids(once.Replies), ids(twice.Replies))
	assert.Equal(t, once.Count, twice.Count)
}

func TestSortNewestFirst_StableOnTies(t *testing.T) {
	list := []*domain.Comment{
		rootComment("a", alice, 5),
		rootComment("b", bob, 5),
		rootComment("c", me, 9),
	}

	SortNewestFirst(list)

	assert.Equal(t, []string{"c", "a", "b"}, ids(list))
}
