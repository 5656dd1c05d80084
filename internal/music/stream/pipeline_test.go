package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/playcord/internal/errs"
)

type fakeProcess struct {
	r       *io.PipeReader
	w       *io.PipeWriter
	waitErr error
	kills   atomic.Int32
}

func newFakeProcess() *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{r: r, w: w}
}

func (p *fakeProcess) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *fakeProcess) Wait() error                { return p.waitErr }
func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	_ = p.w.CloseWithError(errors.New("killed"))
	return nil
}

type fakeDecoder struct {
	proc *fakeProcess
	args []string
	err  error
}

func (d *fakeDecoder) Start(_ context.Context, args []string) (Process, error) {
	d.args = args
	if d.err != nil {
		return nil, d.err
	}
	return d.proc, nil
}

type fakeEncoder struct {
	mu      sync.Mutex
	bitrate int
	frames  [][]int16
	failAt  int
}

func (e *fakeEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, append([]int16(nil), pcm...))
	if e.failAt > 0 && len(e.frames) == e.failAt {
		return nil, errors.New("bad frame")
	}
	return []byte{byte(len(e.frames))}, nil
}

func (e *fakeEncoder) SetBitrate(bitrate int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bitrate = bitrate
}

func newTestBuilder(dec Decoder, enc *fakeEncoder) *Builder {
	return &Builder{
		Decoder:    dec,
		NewEncoder: func() (Encoder, error) { return enc, nil },
		Bitrate:    DefaultBitrate,
		Log:        zerolog.Nop(),
	}
}

func pcmFrame(sample int16) []byte {
	b := make([]byte, pcmFrameBytes)
	for i := 0; i < len(b); i += 2 {
		binary.LittleEndian.PutUint16(b[i:], uint16(sample))
	}
	return b
}

func TestDecodeArgs(t *testing.T) {
	t.Run("no filters omits the flag", func(t *testing.T) {
		args := DecodeArgs("https://example.com/a.mp3", nil)
		assert.NotContains(t, args, "-af")
		assert.Equal(t, []string{
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-i", "https://example.com/a.mp3",
			"-analyzeduration", "0",
			"-loglevel", "0",
			"-f", "s16le",
			"-ar", "48000",
			"-ac", "2",
			"pipe:1",
		}, args)
	})

	t.Run("filters become a single token", func(t *testing.T) {
		args := DecodeArgs("u", []string{"areverse", "atempo=1.5"})
		count := 0
		for i, a := range args {
			if a == "-af" {
				count++
				require.Less(t, i+1, len(args))
				assert.Equal(t, "areverse,atempo=1.5", args[i+1])
			}
		}
		assert.Equal(t, 1, count)
	})
}

func TestPipeline_StreamsUntilEOF(t *testing.T) {
	proc := newFakeProcess()
	dec := &fakeDecoder{proc: proc}
	enc := &fakeEncoder{}

	p, err := newTestBuilder(dec, enc).Build(context.Background(), "u", []string{"mono"})
	require.NoError(t, err)
	defer p.Close()

	assert.Contains(t, dec.args, "-af")
	assert.Equal(t, DefaultBitrate, enc.bitrate)

	go func() {
		_, _ = proc.w.Write(pcmFrame(100))
		_, _ = proc.w.Write(pcmFrame(200)[:pcmFrameBytes/2])
		_ = proc.w.Close()
	}()

	f1, err := p.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, f1)

	f2, err := p.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, f2)

	_, err = p.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, 40*time.Millisecond, p.PlaybackDuration())

	enc.mu.Lock()
	last := enc.frames[1]
	enc.mu.Unlock()
	assert.Equal(t, int16(200), last[0])
	assert.Equal(t, int16(0), last[len(last)-1], "short final frame is zero padded")
}

func TestPipeline_CloseIsIdempotentAndKillsDecoder(t *testing.T) {
	proc := newFakeProcess()
	p, err := newTestBuilder(&fakeDecoder{proc: proc}, &fakeEncoder{}).Build(context.Background(), "u", nil)
	require.NoError(t, err)

	// consumer never reads: the pump blocks on a full buffer
	go func() {
		for range frameBuffer * 4 {
			if _, err := proc.w.Write(pcmFrame(1)); err != nil {
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		assert.NoError(t, p.Close())
		assert.NoError(t, p.Close())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close hung")
	}

	assert.GreaterOrEqual(t, proc.kills.Load(), int32(1))
	assert.NoError(t, p.Err(), "early teardown is not a stream error")

	_, err = p.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipeline_EncoderFailureStopsDecoder(t *testing.T) {
	proc := newFakeProcess()
	enc := &fakeEncoder{failAt: 2}
	p, err := newTestBuilder(&fakeDecoder{proc: proc}, enc).Build(context.Background(), "u", nil)
	require.NoError(t, err)
	defer p.Close()

	go func() {
		for range 10 {
			if _, err := proc.w.Write(pcmFrame(1)); err != nil {
				return
			}
		}
	}()

	_, err = p.ReadFrame()
	require.NoError(t, err)

	_, err = p.ReadFrame()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrStream)
	assert.Contains(t, err.Error(), "encoder")

	assert.Eventually(t, func() bool { return proc.kills.Load() >= 1 }, time.Second, 10*time.Millisecond)
}

func TestPipeline_DecoderExitStatusIsStreamError(t *testing.T) {
	proc := newFakeProcess()
	proc.waitErr = errors.New("exit status 1")
	p, err := newTestBuilder(&fakeDecoder{proc: proc}, &fakeEncoder{}).Build(context.Background(), "u", nil)
	require.NoError(t, err)
	defer p.Close()

	_ = proc.w.Close()

	_, err = p.ReadFrame()
	assert.ErrorIs(t, err, errs.ErrStream)
	assert.ErrorIs(t, p.Err(), errs.ErrStream)
}

func TestBuilder_DecoderStartFailure(t *testing.T) {
	_, err := newTestBuilder(&fakeDecoder{err: errors.New("no ffmpeg")}, &fakeEncoder{}).Build(context.Background(), "u", nil)
	assert.ErrorIs(t, err, errs.ErrStream)
}

func TestPipeline_VolumeAndBitrate(t *testing.T) {
	proc := newFakeProcess()
	enc := &fakeEncoder{}
	p, err := newTestBuilder(&fakeDecoder{proc: proc}, enc).Build(context.Background(), "u", nil)
	require.NoError(t, err)
	defer p.Close()

	p.SetVolumeLogarithmic(0)
	go func() { _, _ = proc.w.Write(pcmFrame(1000)) }()

	_, err = p.ReadFrame()
	require.NoError(t, err)
	enc.mu.Lock()
	assert.Equal(t, int16(0), enc.frames[0][0])
	enc.mu.Unlock()

	// 1000 * 0.5^1.660964
	p.SetVolumeLogarithmic(0.5)
	go func() { _, _ = proc.w.Write(pcmFrame(1000)) }()

	_, err = p.ReadFrame()
	require.NoError(t, err)
	enc.mu.Lock()
	assert.Equal(t, int16(316), enc.frames[1][0])
	assert.Equal(t, int16(316), enc.frames[1][len(enc.frames[1])-1])
	enc.mu.Unlock()

	p.SetVolumeLogarithmic(1)
	go func() { _, _ = proc.w.Write(pcmFrame(1000)) }()

	_, err = p.ReadFrame()
	require.NoError(t, err)
	enc.mu.Lock()
	assert.Equal(t, int16(1000), enc.frames[2][0])
	enc.mu.Unlock()

	require.NoError(t, p.SetBitrate(96000))
	enc.mu.Lock()
	assert.Equal(t, 96000, enc.bitrate)
	enc.mu.Unlock()

	assert.ErrorIs(t, p.SetBitrate(1), errs.ErrInvalidParameter)
}
