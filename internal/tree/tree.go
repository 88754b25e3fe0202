// Package tree implements the pure operations over a comment thread.
//
// A thread is an ordered slice of top-level nodes, each owning its replies by
// value. Every function returns a new slice and never writes into the slices
// it was given, so a thread handed out earlier stays valid.
package tree

import "github.com/ButyrinIA/community/internal/models"

// Flag selects one of the transient in-flight markers of a node.
type Flag int

const (
	Editing Flag = iota
	Deleting
)

// InsertReply appends node to the children of the node with id parentID.
// The thread is returned unchanged if no such node exists.
func InsertReply(nodes []models.CommentNode, parentID string, node models.CommentNode) []models.CommentNode {
	out, _ := update(nodes, parentID, func(n models.CommentNode) models.CommentNode {
		children := make([]models.CommentNode, len(n.Children), len(n.Children)+1)
		copy(children, n.Children)
		n.Children = append(children, node)
		n.HasReplies = true
		return n
	})
	return out
}

// ReplaceNode swaps the own fields of node id for those of updated. The
// children, the parent link and the identity of the node are kept, and both
// transient flags are cleared.
func ReplaceNode(nodes []models.CommentNode, id string, updated models.CommentNode) []models.CommentNode {
	out, _ := update(nodes, id, func(n models.CommentNode) models.CommentNode {
		updated.ID = n.ID
		updated.ItemID = n.ItemID
		updated.ParentID = n.ParentID
		updated.Children = n.Children
		if updated.Author.IsZero() {
			updated.Author = n.Author
			updated.AuthorProvisional = n.AuthorProvisional
		} else {
			updated.AuthorProvisional = false
		}
		updated.IsEditing = false
		updated.IsDeleting = false
		return updated
	})
	return out
}

// RemoveNode drops node id together with all of its descendants. Removing an
// unknown id returns the thread unchanged.
func RemoveNode(nodes []models.CommentNode, id string) []models.CommentNode {
	for i, n := range nodes {
		if n.ID == id {
			out := make([]models.CommentNode, 0, len(nodes)-1)
			out = append(out, nodes[:i]...)
			return append(out, nodes[i+1:]...)
		}
	}
	for i, n := range nodes {
		children := RemoveNode(n.Children, id)
		if len(children) == len(n.Children) {
			continue
		}
		n.Children = children
		n.HasReplies = len(children) > 0
		out := make([]models.CommentNode, len(nodes))
		copy(out, nodes)
		out[i] = n
		return out
	}
	return nodes
}

// SetTransient sets one transient flag of node id. Setting a flag to true
// clears the other one.
func SetTransient(nodes []models.CommentNode, id string, flag Flag, value bool) []models.CommentNode {
	out, _ := update(nodes, id, func(n models.CommentNode) models.CommentNode {
		switch flag {
		case Editing:
			n.IsEditing = value
			if value {
				n.IsDeleting = false
			}
		case Deleting:
			n.IsDeleting = value
			if value {
				n.IsEditing = false
			}
		}
		return n
	})
	return out
}

// CountAll counts every node of the thread at every depth.
func CountAll(nodes []models.CommentNode) int {
	total := 0
	for _, n := range nodes {
		total += 1 + CountAll(n.Children)
	}
	return total
}

// Find returns a copy of node id.
func Find(nodes []models.CommentNode, id string) (models.CommentNode, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
		if found, ok := Find(n.Children, id); ok {
			return found, true
		}
	}
	return models.CommentNode{}, false
}

// Size is the number of nodes removed by RemoveNode(nodes, id).
func Size(nodes []models.CommentNode, id string) int {
	n, ok := Find(nodes, id)
	if !ok {
		return 0
	}
	return 1 + CountAll(n.Children)
}

// Prepend puts node in front of the top-level sequence.
func Prepend(nodes []models.CommentNode, node models.CommentNode) []models.CommentNode {
	out := make([]models.CommentNode, 0, len(nodes)+1)
	out = append(out, node)
	return append(out, nodes...)
}

// MergeTopLevel appends the nodes of page whose ids are not already present
// anywhere in the thread.
func MergeTopLevel(nodes []models.CommentNode, page []models.CommentNode) []models.CommentNode {
	seen := make(map[string]struct{}, len(nodes))
	collect(nodes, seen)
	out := make([]models.CommentNode, len(nodes), len(nodes)+len(page))
	copy(out, nodes)
	for _, n := range page {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

func collect(nodes []models.CommentNode, seen map[string]struct{}) {
	for _, n := range nodes {
		seen[n.ID] = struct{}{}
		collect(n.Children, seen)
	}
}

// update rewrites the node with the given id through fn, copying only the
// slices on the path from the root to that node.
func update(nodes []models.CommentNode, id string, fn func(models.CommentNode) models.CommentNode) ([]models.CommentNode, bool) {
	for i, n := range nodes {
		if n.ID == id {
			n = fn(n)
		} else {
			children, ok := update(n.Children, id, fn)
			if !ok {
				continue
			}
			n.Children = children
		}
		out := make([]models.CommentNode, len(nodes))
		copy(out, nodes)
		out[i] = n
		return out, true
	}
	return nodes, false
}
