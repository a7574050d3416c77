package manifest

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/Iron-Ham/depo/internal/errors"
)

// DefaultSyncAge is the sync age of a project whose token carries no s key.
const DefaultSyncAge = 10

// Token keys understood by ParseProject.
const (
	keyBinary   = "b"
	keySyncAge  = "s"
	keyMap      = "m"
	keyClient   = "c"
	keyDisabled = "-"
)

// Project is the sync policy of one mirrored project. It is immutable once
// the manifest has been loaded.
type Project struct {
	// Name is the remote leaf identifier.
	Name string
	// Binary skips the full-history import on first clone.
	Binary bool
	// SyncAge is carried for external tooling; depo does not interpret it.
	SyncAge int
	// LocalPathOverride replaces Name as the last local path element.
	LocalPathOverride string
	// ClientSpec names a Perforce client whose view maps the project. When set,
	// the remote path is the tree's remote path alone.
	ClientSpec string
	// Enabled is false for projects marked with "-".
	Enabled bool

	tree *Tree
}

// ParseProject parses a project token of the form
//
//	name[|key[=value]]...
//
// Recognized keys are b (binary), s[=n] (sync age, bare s means 0),
// m=path (local path override), c=name (client spec) and - (disabled).
func ParseProject(token string) (*Project, error) {
	fields := strings.Split(token, "|")
	name := strings.TrimSpace(fields[0])
	if name == "" {
		return nil, invalidToken(token, "missing project name")
	}

	p := &Project{
		Name:    name,
		SyncAge: DefaultSyncAge,
		Enabled: true,
	}
	for _, field := range fields[1:] {
		key, value, hasValue, err := splitField(field)
		if err != nil {
			return nil, invalidToken(token, err.Error())
		}
		switch key {
		case keyBinary:
			if hasValue {
				return nil, invalidToken(token, "key b takes no value")
			}
			p.Binary = true
		case keySyncAge:
			if !hasValue {
				p.SyncAge = 0
				continue
			}
			age, err := strconv.Atoi(value)
			if err != nil || age < 0 {
				return nil, invalidToken(token, fmt.Sprintf("sync age %q is not a non-negative integer", value))
			}
			p.SyncAge = age
		case keyMap:
			if value == "" {
				return nil, invalidToken(token, "key m requires a path")
			}
			p.LocalPathOverride = value
		case keyClient:
			if value == "" {
				return nil, invalidToken(token, "key c requires a client name")
			}
			p.ClientSpec = value
		case keyDisabled:
			if hasValue {
				return nil, invalidToken(token, "key - takes no value")
			}
			p.Enabled = false
		default:
			return nil, invalidToken(token, fmt.Sprintf("unknown key %q", key))
		}
	}
	return p, nil
}

func splitField(field string) (key, value string, hasValue bool, err error) {
	idx := strings.IndexByte(field, '=')
	switch {
	case idx == 0:
		return "", "", false, fmt.Errorf("field %q has no key", field)
	case idx < 0:
		return field, "", false, nil
	default:
		return field[:idx], field[idx+1:], true, nil
	}
}

func invalidToken(token, reason string) error {
	return errors.NewManifestError(fmt.Sprintf("project %q: %s", token, reason), errors.ErrInvalidToken)
}

// Tree returns the tree that owns the project, or nil for a project that
// was parsed on its own.
func (p *Project) Tree() *Tree {
	return p.tree
}

// LocalPath is the slash-separated mirror path of the project relative to
// the mirror root.
func (p *Project) LocalPath() string {
	self := p.Name
	if p.LocalPathOverride != "" {
		self = p.LocalPathOverride
	}
	if p.tree == nil {
		return path.Clean(self)
	}
	return path.Clean(path.Join(p.tree.LocalPath(), self))
}

// RemotePath is the depot path imported into the project's mirror.
func (p *Project) RemotePath() string {
	var base string
	if p.tree != nil {
		base = p.tree.RemotePath()
	}
	if p.ClientSpec != "" {
		return base
	}
	return joinRemote(base, p.Name)
}

// Token renders the project back into manifest token form.
func (p *Project) Token() string {
	fields := []string{p.Name}
	if p.Binary {
		fields = append(fields, keyBinary)
	}
	switch {
	case p.SyncAge == 0:
		fields = append(fields, keySyncAge)
	case p.SyncAge != DefaultSyncAge:
		fields = append(fields, keySyncAge+"="+strconv.Itoa(p.SyncAge))
	}
	if p.LocalPathOverride != "" {
		fields = append(fields, keyMap+"="+p.LocalPathOverride)
	}
	if p.ClientSpec != "" {
		fields = append(fields, keyClient+"="+p.ClientSpec)
	}
	if !p.Enabled {
		fields = append(fields, keyDisabled)
	}
	return strings.Join(fields, "|")
}

// Flags describes the non-default policy of the project in words.
func (p *Project) Flags() []string {
	var flags []string
	if p.Binary {
		flags = append(flags, "binary")
	}
	if p.SyncAge != DefaultSyncAge {
		flags = append(flags, "sync="+strconv.Itoa(p.SyncAge))
	}
	if p.ClientSpec != "" {
		flags = append(flags, "client="+p.ClientSpec)
	}
	if !p.Enabled {
		flags = append(flags, "disabled")
	}
	return flags
}

// joinRemote joins depot path elements, keeping a leading "//".
func joinRemote(base, elem string) string {
	switch {
	case base == "":
		return elem
	case elem == "":
		return base
	}
	joined := base + "/" + elem
	if strings.HasPrefix(joined, "//") {
		return "//" + strings.TrimPrefix(path.Clean(joined[2:]), "/")
	}
	return path.Clean(joined)
}
