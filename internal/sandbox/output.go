package sandbox

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const truncatedMarker = "\n... (output truncated)"

// limitedBuffer keeps at most max bytes and remembers whether more was
// written. It is safe for concurrent writers.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func newLimitedBuffer(max int) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max <= 0 {
		return b.buf.Write(p)
	}

	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) writeString(s string) {
	b.Write([]byte(s))
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return b.buf.String() + truncatedMarker
	}
	return b.buf.String()
}

// outputPipes carries a child's stdout and stderr through pipes owned by
// the parent. Unlike plain io.Writers on exec.Cmd, Wait does not block on
// them, so descendants holding the write ends cannot stall it.
type outputPipes struct {
	readers []*os.File
	writers []*os.File
	wg      sync.WaitGroup
}

func captureOutput(cmd *exec.Cmd, stdout, stderr io.Writer) (*outputPipes, error) {
	p := &outputPipes{}
	for _, dst := range []io.Writer{stdout, stderr} {
		r, w, err := os.Pipe()
		if err != nil {
			p.closeWriters()
			p.close()
			return nil, err
		}
		p.readers = append(p.readers, r)
		p.writers = append(p.writers, w)

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			io.Copy(dst, r)
		}()
	}

	cmd.Stdout = p.writers[0]
	cmd.Stderr = p.writers[1]
	return p, nil
}

// closeWriters drops the parent's copies of the write ends. Call it once
// the child has started or failed to start.
func (p *outputPipes) closeWriters() {
	for _, w := range p.writers {
		w.Close()
	}
}

// drain waits for every writer to go away, at most timeout. Past that the
// read ends are closed and whatever was captured so far is kept.
func (p *outputPipes) drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		p.close()
		<-done
	}
}

func (p *outputPipes) close() {
	for _, r := range p.readers {
		r.Close()
	}
}
