package manifest

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/depo/internal/errors"
)

const treeKeyPrefix = "tree-"

// Manifest is a loaded project forest together with its flattened,
// conflict-checked map of local path to project.
type Manifest struct {
	root     *Tree
	projects map[string]*Project
}

// LoadFile reads and loads the manifest at filename.
func LoadFile(filename string) (*Manifest, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewManifestError("failed to open manifest", err)
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", filename)
	}
	return m, nil
}

// Load decodes a manifest document, builds its tree and flattens it.
// Duplicate or nested project paths are rejected before Load returns.
func Load(r io.Reader) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.NewManifestError("manifest is empty", nil)
		}
		return nil, errors.NewManifestError("failed to parse manifest", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.NewManifestError("manifest must be a mapping", nil)
	}

	top := doc.Content[0]
	var rootNode *yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		key := top.Content[i].Value
		if key != treeKeyPrefix+RootTree {
			return nil, nodeError(top.Content[i], fmt.Sprintf("unexpected top-level key %q", key))
		}
		rootNode = top.Content[i+1]
	}
	if rootNode == nil {
		return nil, errors.NewManifestError(fmt.Sprintf("missing %q", treeKeyPrefix+RootTree), nil)
	}

	root, err := buildTree(RootTree, rootNode)
	if err != nil {
		return nil, err
	}
	projects, err := flatten(root)
	if err != nil {
		return nil, err
	}
	return &Manifest{root: root, projects: projects}, nil
}

// Root returns the root tree.
func (m *Manifest) Root() *Tree {
	return m.root
}

// Len returns the number of projects.
func (m *Manifest) Len() int {
	return len(m.projects)
}

// Map returns a copy of the local path to project map.
func (m *Manifest) Map() map[string]*Project {
	out := make(map[string]*Project, len(m.projects))
	for p, proj := range m.projects {
		out[p] = proj
	}
	return out
}

// Paths returns every project local path in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.projects))
	for p := range m.projects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Projects returns every project ordered by local path.
func (m *Manifest) Projects() []*Project {
	paths := m.Paths()
	out := make([]*Project, len(paths))
	for i, p := range paths {
		out[i] = m.projects[p]
	}
	return out
}

// Project returns the project at the given local path.
func (m *Manifest) Project(localPath string) (*Project, bool) {
	p, ok := m.projects[path.Clean(localPath)]
	return p, ok
}

// Lookup returns the requested paths that name no project.
func (m *Manifest) Lookup(paths []string) []string {
	var unknown []string
	for _, p := range paths {
		if _, ok := m.Project(p); !ok {
			unknown = append(unknown, p)
		}
	}
	return unknown
}

// buildTree decodes one tree mapping and its nested tree-<name> entries.
func buildTree(name string, node *yaml.Node) (*Tree, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nodeError(node, "tree must be a mapping").WithTree(name)
	}

	t := &Tree{Name: name}
	var (
		projects []string
		children []string
		nested   = map[string]*yaml.Node{}
	)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, value := node.Content[i], node.Content[i+1]
		var err error
		switch key := keyNode.Value; {
		case key == "path":
			err = value.Decode(&t.RemoteOverride)
		case key == "map":
			err = value.Decode(&t.LocalOverride)
		case key == "projects":
			err = value.Decode(&projects)
		case key == "clients":
			err = value.Decode(&t.Clients)
		case key == "trees":
			err = value.Decode(&children)
		case strings.HasPrefix(key, treeKeyPrefix):
			nested[strings.TrimPrefix(key, treeKeyPrefix)] = value
		default:
			return nil, nodeError(keyNode, fmt.Sprintf("unknown field %q", key)).WithTree(name)
		}
		if err != nil {
			return nil, errors.NewManifestError(fmt.Sprintf("invalid %q", keyNode.Value), err).WithTree(name)
		}
	}

	for _, token := range projects {
		p, err := ParseProject(token)
		if err != nil {
			return nil, withTree(err, name)
		}
		t.addProject(p)
	}

	seen := map[string]bool{}
	for _, child := range children {
		if seen[child] {
			return nil, errors.NewManifestError(fmt.Sprintf("tree %q listed twice", child), nil).WithTree(name)
		}
		seen[child] = true
		childNode, ok := nested[child]
		if !ok {
			return nil, errors.NewManifestError(fmt.Sprintf("missing %q", treeKeyPrefix+child), nil).WithTree(name)
		}
		sub, err := buildTree(child, childNode)
		if err != nil {
			return nil, err
		}
		t.addChild(sub)
	}
	for child := range nested {
		if !seen[child] {
			return nil, errors.NewManifestError(fmt.Sprintf("%q is not listed in trees", treeKeyPrefix+child), nil).WithTree(name)
		}
	}
	return t, nil
}

// flatten walks the forest breadth first and returns a new map of local path
// to project, rejecting duplicate and nested paths as they are inserted.
func flatten(root *Tree) (map[string]*Project, error) {
	projects := map[string]*Project{}
	queue := []*Tree{root}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		for _, p := range t.projects {
			// ancestors are only attached once the whole tree is built
			if p.ClientSpec != "" && !t.DeclaresClient(p.ClientSpec) {
				return nil, errors.NewManifestError(
					fmt.Sprintf("project %q uses undeclared client %q", p.Name, p.ClientSpec), errors.ErrInvalidToken,
				).WithTree(t.Name)
			}
			if err := insert(projects, p); err != nil {
				return nil, err
			}
		}
		queue = append(queue, t.children...)
	}
	return projects, nil
}

func insert(projects map[string]*Project, p *Project) error {
	local := p.LocalPath()
	if local == "." || local == ".." || strings.HasPrefix(local, "../") || path.IsAbs(local) {
		return errors.NewManifestError("project path escapes the mirror root", errors.ErrInvalidToken).WithPaths(local)
	}
	if _, ok := projects[local]; ok {
		return errors.NewManifestError("duplicated project path", errors.ErrDuplicateProject).WithPaths(local)
	}
	for existing := range projects {
		if within(existing, local) || within(local, existing) {
			return errors.NewManifestError("conflicting project paths", errors.ErrConflictingProjects).WithPaths(existing, local)
		}
	}
	projects[local] = p
	return nil
}

// within reports whether child lies strictly inside dir.
func within(child, dir string) bool {
	return strings.HasPrefix(child, dir+"/")
}

func nodeError(node *yaml.Node, msg string) *errors.ManifestError {
	return errors.NewManifestError(fmt.Sprintf("line %d: %s", node.Line, msg), nil)
}

func withTree(err error, name string) error {
	var me *errors.ManifestError
	if errors.As(err, &me) {
		return me.WithTree(name)
	}
	return err
}
