package thread

import (
	"fmt"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// NodeView - неизменяемый снимок узла: запись комментария плюс состояние отрисовки.
type NodeView struct {
	Comment  domain.Comment
	State    NodeState
	Count    int
	Fetched  bool
	Fetching bool
	LikeBusy bool
	Children []NodeView
}

// Policy - правила вложенности для отрисовки.
type Policy struct {
	MaxReplyDepth     int
	AlwaysExpandDepth int
	ViewerID          string
}

// Row - одна строка плоской отрисовки дерева.
type Row struct {
	Comment domain.Comment
	Depth   int
	State   NodeState
	// ReplyCount - авторитетное число ответов для подписи "N ответов".
	ReplyCount int
	Label      string
	// Mention - префикс "@username" для ответов на ответы.
	Mention     string
	CanReply    bool
	CanLike     bool
	CanEdit     bool
	Collapsible bool
	// NeedsFetch - узел раскрыт, но его ответы еще не загружены.
	NeedsFetch bool
	Pending    bool
	LikeBusy   bool
}

// Snapshot снимает дерево текущей страницы в порядке отображения.
func (t *Thread) Snapshot() []NodeView {
	t.mu.Lock()
	defer t.mu.Unlock()

	roots := t.orderedRoots()
	out := make([]NodeView, 0, len(roots))
	for _, c := range roots {
		out = append(out, t.view(c))
	}
	return out
}

func (t *Thread) view(c *domain.Comment) NodeView {
	v := NodeView{Comment: copyComment(c), Count: c.ReplyCount}
	if n, ok := t.nodes[c.ID]; ok {
		v.State = n.state
		v.Count = n.count
		v.Fetched = n.fetched
		v.Fetching = n.fetching
		v.LikeBusy = n.likeBusy
	}
	for _, r := range c.Replies {
		v.Children = append(v.Children, t.view(r))
	}
	return v
}

// Rows строит строки текущего состояния представления.
func (t *Thread) Rows() []Row {
	return Render(t.Snapshot(), t.Policy())
}

// Render обходит снимок в глубину и возвращает строки для отображения.
// Ответы узла попадают в результат только когда узел раскрыт.
// Функция чистая: ни загрузок, ни изменений состояния.
func Render(roots []NodeView, p Policy) []Row {
	var rows []Row
	for i := range roots {
		rows = renderNode(rows, &roots[i], p)
	}
	return rows
}

func renderNode(rows []Row, v *NodeView, p Policy) []Row {
	c := v.Comment
	authorID := c.Author.ID()
	pending := isTemp(c.ID)
	row := Row{
		Comment:     c,
		Depth:       c.Depth,
		State:       v.State,
		ReplyCount:  v.Count,
		Collapsible: c.Depth <= p.AlwaysExpandDepth,
		CanReply:    p.ViewerID != "" && c.Depth < p.MaxReplyDepth && !pending,
		CanLike:     p.ViewerID != "" && authorID != p.ViewerID && !pending,
		CanEdit:     p.ViewerID != "" && authorID == p.ViewerID && !pending,
		Pending:     pending,
		LikeBusy:    v.LikeBusy,
		NeedsFetch:  v.State == Expanded && !v.Fetched && !v.Fetching && v.Count > len(v.Children),
	}
	if c.ReplyTo != nil && c.Depth >= 2 {
		row.Mention = "@" + c.ReplyTo.Username
	}
	row.Label = label(v, row.Collapsible)
	rows = append(rows, row)

	if v.State != Expanded {
		return rows
	}
	for i := range v.Children {
		rows = renderNode(rows, &v.Children[i], p)
	}
	return rows
}

func label(v *NodeView, collapsible bool) string {
	switch v.State {
	case Loading:
		return "Loading replies..."
	case NoReplies:
		return "No replies"
	case Expanded:
		if collapsible && len(v.Children) > 0 {
			return "Hide replies"
		}
		return ""
	}
	switch v.Count {
	case 0:
		// ответов нет: управлять нечем
		return ""
	case 1:
		return "View 1 reply"
	}
	return fmt.Sprintf("View %d replies", v.Count)
}
