package stream

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Process is a running decoder. Read yields raw PCM; Wait reports the exit
// status after EOF; Kill terminates and reaps the process and may be called
// any number of times.
type Process interface {
	io.Reader
	Wait() error
	Kill() error
}

// Decoder starts a decoder process for an argument vector.
type Decoder interface {
	Start(ctx context.Context, args []string) (Process, error)
}

// FFmpeg runs the ffmpeg binary at Path.
type FFmpeg struct {
	Path string
}

func (f FFmpeg) Start(ctx context.Context, args []string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}

	// The process outlives ctx: it is bound to the pipeline, not the request.
	cmd := exec.Command(path, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("command start error: %w", err)
	}

	return &ffmpegProcess{cmd: cmd, stdout: stdout}, nil
}

type ffmpegProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	waitOnce sync.Once
	waitErr  error
	killed   atomic.Bool
}

func (p *ffmpegProcess) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *ffmpegProcess) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

func (p *ffmpegProcess) Kill() error {
	if p.killed.Swap(true) {
		return nil
	}
	if p.cmd.Process != nil {
		// fails with os.ErrProcessDone after a natural exit
		_ = p.cmd.Process.Kill()
	}
	_ = p.Wait()
	return nil
}
