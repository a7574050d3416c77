package publish_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/depo/internal/errors"
	"github.com/Iron-Ham/depo/internal/gitcmd"
	"github.com/Iron-Ham/depo/internal/manifest"
	"github.com/Iron-Ham/depo/internal/mirror"
	"github.com/Iron-Ham/depo/internal/publish"
	"github.com/Iron-Ham/depo/internal/testutil"
)

type fakeHost struct {
	projects []string
	listed   int
	created  []string
	parents  []string
	calls    []string
	listErr  error
}

func (h *fakeHost) ListProjects(_ context.Context, _ string) ([]string, error) {
	h.listed++
	h.calls = append(h.calls, "list")
	return h.projects, h.listErr
}

func (h *fakeHost) CreateProject(_ context.Context, name, parent string) error {
	h.created = append(h.created, name)
	h.parents = append(h.parents, parent)
	h.calls = append(h.calls, "create "+name)
	return nil
}

type push struct {
	dir, url, rev, branch string
}

type fakeRemote struct {
	tips    map[string]string
	pushes  []push
	pushErr error
	host    *fakeHost
}

func (r *fakeRemote) Tip(_ context.Context, url, _ string) (string, error) {
	tip, ok := r.tips[url]
	if !ok {
		return "", errors.NewPublishError("failed to read remote branch", errors.ErrRefNotFound)
	}
	return tip, nil
}

func (r *fakeRemote) Push(_ context.Context, dir, url, rev, branch string) error {
	if r.host != nil {
		r.host.calls = append(r.host.calls, "push "+url)
	}
	if r.pushErr != nil {
		return r.pushErr
	}
	r.pushes = append(r.pushes, push{dir: dir, url: url, rev: rev, branch: branch})
	return nil
}

func projects(t *testing.T, tokens string) []*manifest.Project {
	t.Helper()
	m, err := manifest.Load(strings.NewReader("tree-root:\n  path: //depot\n  projects: [" + tokens + "]\n"))
	require.NoError(t, err)
	return m.Projects()
}

// syncedMirror creates a mirror whose master branch has n commits.
func syncedMirror(t *testing.T, root, local string, n int) string {
	t.Helper()
	dir := testutil.InitBare(t, mirror.Path(root, local))
	return testutil.AddCommits(t, dir, "refs/heads/master", n)
}

func TestPublish(t *testing.T) {
	root := t.TempDir()
	same := syncedMirror(t, root, "same", 2)
	behind := syncedMirror(t, root, "behind", 3)
	fresh := syncedMirror(t, root, "fresh", 1)
	absent := syncedMirror(t, root, "absent", 1)

	host := &fakeHost{projects: []string{"mirror/same", "mirror/behind", "mirror/fresh"}}
	remote := &fakeRemote{
		host: host,
		tips: map[string]string{
			"https://review/mirror/same":   same,
			"https://review/mirror/behind": strings.Repeat("1", 40),
		},
	}
	p := publish.New(publish.Config{PushURL: "https://review/", ProjectPrefix: "mirror"}, host, remote, root)

	report, err := p.Publish(context.Background(), projects(t, "same, behind, fresh, absent"))
	require.NoError(t, err)

	t.Run("equal tips are not pushed", func(t *testing.T) {
		assert.Equal(t, []string{"mirror/same"}, report.Skipped)
	})

	t.Run("different tips are pushed", func(t *testing.T) {
		assert.Contains(t, report.Pushed, "mirror/behind")
		assert.Contains(t, remote.pushes, push{
			dir:    mirror.Path(root, "behind"),
			url:    "https://review/mirror/behind",
			rev:    behind,
			branch: "master",
		})
	})

	t.Run("missing remote branch is pushed unconditionally", func(t *testing.T) {
		assert.Contains(t, report.Pushed, "mirror/fresh")
		assert.Contains(t, remote.pushes, push{
			dir:    mirror.Path(root, "fresh"),
			url:    "https://review/mirror/fresh",
			rev:    fresh,
			branch: "master",
		})
	})

	t.Run("absent project is created before the push", func(t *testing.T) {
		assert.Equal(t, []string{"mirror/absent"}, report.Created)
		assert.Equal(t, []string{publish.DefaultParent}, host.parents)
		create := indexOf(host.calls, "create mirror/absent")
		pushed := indexOf(host.calls, "push https://review/mirror/absent")
		require.GreaterOrEqual(t, create, 0)
		assert.Greater(t, pushed, create)
		assert.Contains(t, remote.pushes, push{
			dir:    mirror.Path(root, "absent"),
			url:    "https://review/mirror/absent",
			rev:    absent,
			branch: "master",
		})
	})

	t.Run("host is listed once", func(t *testing.T) {
		assert.Equal(t, 1, host.listed)
	})
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestPublishSelection(t *testing.T) {
	root := t.TempDir()
	for _, local := range []string{"libs/core", "libs/net", "apps/ios", "old"} {
		syncedMirror(t, root, local, 1)
	}

	host := &fakeHost{}
	remote := &fakeRemote{}
	p := publish.New(publish.Config{PushURL: "ssh://review:29418", PathPrefix: "libs/"}, host, remote, root)

	m, err := manifest.Load(strings.NewReader(`
tree-root:
  path: //depot
  projects: ["old|-"]
  trees: [libs, apps]
  tree-libs:
    projects: [core, net]
  tree-apps:
    projects: [ios]
`))
	require.NoError(t, err)

	report, err := p.Publish(context.Background(), m.Projects())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"libs/core", "libs/net"}, report.Pushed)
	assert.ElementsMatch(t, []string{"libs/core", "libs/net"}, report.Created)
	for _, p := range remote.pushes {
		assert.True(t, strings.HasPrefix(p.url, "ssh://review:29418/libs/"), p.url)
	}
}

func TestPublishSkipsUnsynchronizedMirrors(t *testing.T) {
	root := t.TempDir()
	testutil.InitBare(t, mirror.Path(root, "empty"))

	host := &fakeHost{}
	remote := &fakeRemote{}
	report, err := publish.New(publish.Config{PushURL: "https://review"}, host, remote, root).
		Publish(context.Background(), projects(t, "empty, never"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"empty", "never"}, report.Missing)
	assert.Empty(t, remote.pushes)
	assert.Zero(t, host.listed, "nothing to publish means no host request")
}

func TestPublishPushFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	syncedMirror(t, root, "a", 1)
	syncedMirror(t, root, "b", 1)

	host := &fakeHost{projects: []string{"a", "b"}}
	remote := &fakeRemote{pushErr: errors.NewPublishError("git push failed: denied", errors.ErrPushFailed)}

	report, err := publish.New(publish.Config{PushURL: "https://review"}, host, remote, root).
		Publish(context.Background(), projects(t, "a, b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPushFailed)

	var pubErr *errors.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "a", pubErr.Project)
	assert.Empty(t, report.Pushed)
}

func TestPublishListFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	syncedMirror(t, root, "a", 1)

	host := &fakeHost{listErr: errors.NewPublishError("GET failed", errors.ErrHostRequest)}
	_, err := publish.New(publish.Config{}, host, &fakeRemote{}, root).
		Publish(context.Background(), projects(t, "a"))
	assert.ErrorIs(t, err, errors.ErrHostRequest)
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		cfg    publish.Config
		local  string
		expect string
	}{
		{name: "plain", local: "libs/core", expect: "libs/core"},
		{name: "prefix", cfg: publish.Config{ProjectPrefix: "mirror/p4"}, local: "libs/core", expect: "mirror/p4/libs/core"},
		{name: "strip", cfg: publish.Config{StripPrefix: "libs"}, local: "libs/core", expect: "core"},
		{name: "strip with slash", cfg: publish.Config{StripPrefix: "/libs/"}, local: "libs/core", expect: "core"},
		{name: "strip partial segment", cfg: publish.Config{StripPrefix: "li"}, local: "libs/core", expect: "libs/core"},
		{name: "strip and prefix", cfg: publish.Config{StripPrefix: "libs", ProjectPrefix: "p4"}, local: "libs/core", expect: "p4/core"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := publish.New(tt.cfg, &fakeHost{}, &fakeRemote{}, t.TempDir())
			assert.Equal(t, tt.expect, p.Identifier(tt.local))
		})
	}
}

func TestPublishToLocalRemote(t *testing.T) {
	testutil.RequireGit(t)

	root := t.TempDir()
	hostRoot := t.TempDir()
	rev := syncedMirror(t, root, "core", 2)

	remoteDir := testutil.InitBare(t, filepath.Join(hostRoot, "core"))
	testutil.RunGit(t, remoteDir, "config", "receive.advertisePushOptions", "true")

	host := &fakeHost{projects: []string{"core"}}
	p := publish.New(publish.Config{PushURL: hostRoot}, host, gitcmd.NewRemote(), root)

	report, err := p.Publish(context.Background(), projects(t, "core"))
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, report.Pushed)
	assert.Equal(t, rev, testutil.Ref(t, remoteDir, "refs/heads/master"))

	report, err = p.Publish(context.Background(), projects(t, "core"))
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, report.Skipped)
	assert.Empty(t, report.Pushed)
}
