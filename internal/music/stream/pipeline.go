package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/playcord/internal/errs"
)

// frameBuffer bounds how far the encoder may run ahead of the consumer.
const frameBuffer = 16

// logVolumeExponent maps a [0,1] volume onto a perceptually even gain curve.
const logVolumeExponent = 1.660964

// Builder starts pipelines.
type Builder struct {
	Decoder    Decoder
	NewEncoder func() (Encoder, error)
	Bitrate    int
	Log        zerolog.Logger
}

func NewBuilder(ffmpegPath string, bitrate int, log zerolog.Logger) *Builder {
	return &Builder{
		Decoder:    FFmpeg{Path: ffmpegPath},
		NewEncoder: NewOpusEncoder,
		Bitrate:    bitrate,
		Log:        log.With().Str("component", "stream").Logger(),
	}
}

// Build starts the decoder for url with fragments applied and attaches
// an encoder stage to its output. The returned pipeline must be closed.
func (b *Builder) Build(ctx context.Context, url string, fragments []string) (*Pipeline, error) {
	enc, err := b.NewEncoder()
	if err != nil {
		return nil, errs.Stream("encoder", err)
	}
	if b.Bitrate > 0 {
		enc.SetBitrate(b.Bitrate)
	}

	args := DecodeArgs(url, fragments)
	b.Log.Debug().Strs("args", args).Msg("starting decoder")

	proc, err := b.Decoder.Start(ctx, args)
	if err != nil {
		return nil, errs.Stream("decoder", err)
	}

	p := &Pipeline{
		proc:     proc,
		enc:      enc,
		frames:   make(chan []byte, frameBuffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		log:      b.Log,
	}
	p.gain.Store(math.Float64bits(1))

	go p.pump()
	return p, nil
}

// Pipeline owns one decoder process and one encoder for the lifetime of a
// single track. ReadFrame is meant for a single consumer.
type Pipeline struct {
	proc Process

	encMu sync.Mutex
	enc   Encoder

	frames   chan []byte
	done     chan struct{}
	finished chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error

	gain   atomic.Uint64
	played atomic.Int64

	log zerolog.Logger
}

// ReadFrame returns the next Opus packet. It returns io.EOF when the track
// ended or the pipeline was closed, and a stream error when a stage failed.
func (p *Pipeline) ReadFrame() ([]byte, error) {
	if p.closed.Load() {
		return nil, io.EOF
	}

	select {
	case pkt, ok := <-p.frames:
		if !ok {
			if err := p.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		p.played.Add(1)
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// Err returns the first stage failure, if any.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// SetVolumeLogarithmic sets the inline gain from a [0,1] volume.
func (p *Pipeline) SetVolumeLogarithmic(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	p.gain.Store(math.Float64bits(math.Pow(v, logVolumeExponent)))
}

func (p *Pipeline) SetBitrate(bps int) error {
	if !ValidBitrate(bps) {
		return errs.InvalidParameterf("bitrate must be between %d and %d, got %d", MinBitrate, MaxBitrate, bps)
	}
	p.encMu.Lock()
	defer p.encMu.Unlock()
	p.enc.SetBitrate(bps)
	return nil
}

// PlaybackDuration is the audio handed to the consumer so far.
func (p *Pipeline) PlaybackDuration() time.Duration {
	return time.Duration(p.played.Load()) * 20 * time.Millisecond
}

// Close tears down both stages. Safe to call from any goroutine, any number of times.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		_ = p.proc.Kill()
		<-p.finished
		p.log.Debug().Msg("pipeline closed")
	})
	return nil
}

func (p *Pipeline) fail(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()
}

func (p *Pipeline) pump() {
	defer close(p.finished)
	defer close(p.frames)

	pcm := make([]byte, pcmFrameBytes)
	samples := make([]int16, frameSize*channels)

	for {
		n, rerr := io.ReadFull(p.proc, pcm)
		if p.closed.Load() {
			return
		}

		if rerr != nil && !errors.Is(rerr, io.EOF) && !errors.Is(rerr, io.ErrUnexpectedEOF) {
			p.fail(errs.Stream("decoder", rerr))
			_ = p.proc.Kill()
			return
		}

		if n > 0 {
			clear(pcm[n:])
			p.toSamples(pcm, samples)

			p.encMu.Lock()
			pkt, err := p.enc.Encode(samples, frameSize, pcmFrameBytes)
			p.encMu.Unlock()
			if err != nil {
				p.fail(errs.Stream("encoder", err))
				_ = p.proc.Kill()
				return
			}

			select {
			case p.frames <- pkt:
			case <-p.done:
				return
			}
		}

		if rerr != nil {
			// end of decoder output
			if werr := p.proc.Wait(); werr != nil && !p.closed.Load() {
				p.fail(errs.Stream("decoder", werr))
			}
			p.log.Debug().Int64("frames", p.played.Load()).Msg("decoder finished")
			return
		}
	}
}

func (p *Pipeline) toSamples(pcm []byte, out []int16) {
	gain := math.Float64frombits(p.gain.Load())
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		if gain != 1 {
			v := math.Round(float64(s) * gain)
			s = int16(max(min(v, math.MaxInt16), math.MinInt16))
		}
		out[i] = s
	}
}
