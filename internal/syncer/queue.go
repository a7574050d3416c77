package syncer

import (
	"strings"
	"sync"
)

// outputTailLines is how many trailing stdout lines are kept for the error
// text of a failed import.
const outputTailLines = 200

// lineQueue is an unbounded FIFO of output lines shared by one drain
// goroutine and the scheduler loop.
type lineQueue struct {
	mu    sync.Mutex
	lines []string
}

func (q *lineQueue) push(line string) {
	q.mu.Lock()
	q.lines = append(q.lines, line)
	q.mu.Unlock()
}

// drain removes and returns every queued line without blocking.
func (q *lineQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	lines := q.lines
	q.lines = nil
	return lines
}

// tail keeps the last max lines added to it.
type tail struct {
	max   int
	lines []string
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}
