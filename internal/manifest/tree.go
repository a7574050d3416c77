package manifest

import (
	"path"
	"slices"
)

// RootTree is the name of the tree every manifest starts from.
const RootTree = "root"

// Tree is a node of the manifest forest. Its paths are derived from its
// ancestry on every call.
type Tree struct {
	// Name is the tree's name, used as its path element when no override is set.
	Name string
	// RemoteOverride replaces Name as the remote path element (manifest "path").
	RemoteOverride string
	// LocalOverride replaces Name as the local path element (manifest "map").
	LocalOverride string
	// Clients lists the client specs projects of this subtree may use.
	Clients []string

	parent   *Tree
	children []*Tree
	projects []*Project
}

// Parent returns the enclosing tree, or nil for the root.
func (t *Tree) Parent() *Tree { return t.parent }

// Children returns the child trees in manifest order.
func (t *Tree) Children() []*Tree { return t.children }

// Projects returns the projects owned directly by the tree, in manifest order.
func (t *Tree) Projects() []*Project { return t.projects }

// LocalPath returns the tree's slash-separated path under the mirror root.
// The root contributes only its override.
func (t *Tree) LocalPath() string {
	if t.parent == nil {
		if t.LocalOverride == "" {
			return ""
		}
		return path.Clean(t.LocalOverride)
	}
	self := t.Name
	if t.LocalOverride != "" {
		self = t.LocalOverride
	}
	return path.Clean(path.Join(t.parent.LocalPath(), self))
}

// RemotePath returns the depot path of the tree.
func (t *Tree) RemotePath() string {
	if t.parent == nil {
		return t.RemoteOverride
	}
	self := t.Name
	if t.RemoteOverride != "" {
		self = t.RemoteOverride
	}
	return joinRemote(t.parent.RemotePath(), self)
}

// DeclaresClient reports whether the tree or one of its ancestors lists the
// named client spec.
func (t *Tree) DeclaresClient(name string) bool {
	for n := t; n != nil; n = n.parent {
		if slices.Contains(n.Clients, name) {
			return true
		}
	}
	return false
}

func (t *Tree) addChild(child *Tree) {
	child.parent = t
	t.children = append(t.children, child)
}

func (t *Tree) addProject(p *Project) {
	p.tree = t
	t.projects = append(t.projects, p)
}
