package gitcmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/depo/internal/errors"
	"github.com/Iron-Ham/depo/internal/testutil"
)

type call struct {
	dir  string
	args []string
}

type fakeExecutor struct {
	calls  []call
	output string
	err    error
}

func (f *fakeExecutor) Run(_ context.Context, dir string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{dir: dir, args: append([]string{name}, args...)})
	return []byte(f.output), f.err
}

func TestRemoteTip(t *testing.T) {
	exec := &fakeExecutor{output: "0123abcd\trefs/heads/master\n"}
	r := NewRemoteWithExecutor(exec)

	tip, err := r.Tip(context.Background(), "https://review/libs/core", "master")
	require.NoError(t, err)
	assert.Equal(t, "0123abcd", tip)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, []string{"git", "ls-remote", "--exit-code", "https://review/libs/core", "refs/heads/master"}, exec.calls[0].args)
}

func TestRemoteTipFailure(t *testing.T) {
	r := NewRemoteWithExecutor(&fakeExecutor{err: fmt.Errorf("exit status 2")})
	_, err := r.Tip(context.Background(), "https://review/x", "master")
	require.Error(t, err)

	var pe *errors.PublishError
	assert.True(t, errors.As(err, &pe))
}

func TestRemoteTipUnexpectedOutput(t *testing.T) {
	r := NewRemoteWithExecutor(&fakeExecutor{output: "garbage\n"})
	_, err := r.Tip(context.Background(), "https://review/x", "master")
	assert.ErrorIs(t, err, errors.ErrRefNotFound)
}

func TestRemotePush(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRemoteWithExecutor(exec)

	require.NoError(t, r.Push(context.Background(), "/m/core.git", "https://review/core", "abc", "master"))
	assert.Equal(t, []string{
		"git", "-C", "/m/core.git", "push", "-o", "skip-validation", "https://review/core", "abc:refs/heads/master",
	}, exec.calls[0].args)
}

func TestRemotePushFailure(t *testing.T) {
	r := NewRemoteWithExecutor(&fakeExecutor{output: "remote rejected\n", err: fmt.Errorf("exit status 1")})
	err := r.Push(context.Background(), "/m", "u", "abc", "master")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPushFailed)
	assert.Contains(t, err.Error(), "remote rejected")
}

func TestRemoteAgainstLocalRepository(t *testing.T) {
	testutil.RequireGit(t)

	ctx := context.Background()
	base := t.TempDir()
	hostRepo := testutil.InitBare(t, filepath.Join(base, "host", "core.git"))
	testutil.RunGit(t, hostRepo, "config", "receive.advertisePushOptions", "true")

	mirrorDir := testutil.InitBare(t, filepath.Join(base, "mirror", "core.git"))
	tip := testutil.AddCommits(t, mirrorDir, "refs/heads/master", 2)

	r := NewRemote()

	_, err := r.Tip(ctx, hostRepo, "master")
	require.Error(t, err, "branch does not exist yet")

	require.NoError(t, r.Push(ctx, mirrorDir, hostRepo, tip, "master"))

	got, err := r.Tip(ctx, hostRepo, "master")
	require.NoError(t, err)
	assert.Equal(t, tip, strings.TrimSpace(got))
}
