package syncer

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/depo/internal/testutil"
)

func TestScanLines(t *testing.T) {
	input := "Importing revision 1 (10%)\rImporting revision 2 (20%)\r\nDone\nlast"
	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Split(scanLines)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{
		"Importing revision 1 (10%)",
		"Importing revision 2 (20%)",
		"",
		"Done",
		"last",
	}, lines)
}

func TestLineQueue(t *testing.T) {
	var q lineQueue
	assert.Empty(t, q.drain())

	q.push("a")
	q.push("b")
	assert.Equal(t, []string{"a", "b"}, q.drain())
	assert.Empty(t, q.drain())
}

func TestTail(t *testing.T) {
	tl := newTail(2)
	for _, line := range []string{"one", "two", "three"} {
		tl.add(line)
	}
	assert.Equal(t, "two\nthree", tl.String())
}

func TestExecRunner(t *testing.T) {
	testutil.RequireGit(t)

	dir := testutil.InitBare(t, t.TempDir())
	proc, err := NewExecRunner().Start(context.Background(), dir, "rev-parse", "--is-bare-repository")
	require.NoError(t, err)

	q := &lineQueue{}
	done := make(chan exitResult, 1)
	drain(proc, q, done)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []string{"true"}, q.drain())
	assert.Equal(t, "true", res.stdout)
}

func TestExecRunnerFailure(t *testing.T) {
	testutil.RequireGit(t)

	proc, err := NewExecRunner().Start(context.Background(), t.TempDir(), "rev-parse", "refs/does/not/exist")
	require.NoError(t, err)

	done := make(chan exitResult, 1)
	drain(proc, &lineQueue{}, done)

	res := <-done
	require.Error(t, res.err)
	assert.NotEmpty(t, res.stderr)
}
