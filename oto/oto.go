package oto

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/jackerseq/jacker"
)

type (
	// OtoContext plays audio processors on the default audio device. The
	// audio callback of the device is the clock of the sequencer.
	OtoContext struct {
		context    *oto.Context
		sampleRate int
	}

	// OtoOutput is a running stream pulling audio from a processor.
	OtoOutput struct {
		player    *oto.Player
		reader    *processorReader
		closeOnce sync.Once
		done      chan struct{}
	}

	// processorReader is the io.Reader oto pulls the audio from.
	processorReader struct {
		processor jacker.AudioProcessor
		buf       jacker.AudioBuffer
		closed    chan struct{}
	}
)

const bytesPerSample = 8 // two float32 channels

// NewContext creates the oto context; oto supports only one per process.
// bufferSize is the length of the device buffer in samples.
func NewContext(sampleRate, bufferSize int) (*OtoContext, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(bufferSize) * time.Second / time.Duration(sampleRate),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context, sampleRate: sampleRate}, nil
}

func (c *OtoContext) SampleRate() int { return c.sampleRate }

// Play starts pulling audio from p. p.ProcessAudio is called from the audio
// goroutine of oto until the output is closed or p returns an error.
func (c *OtoContext) Play(p jacker.AudioProcessor) (jacker.CloserWaiter, error) {
	reader := &processorReader{processor: p, closed: make(chan struct{})}
	player := c.context.NewPlayer(reader)
	if err := player.Err(); err != nil {
		return nil, fmt.Errorf("cannot create oto player: %w", err)
	}
	o := &OtoOutput{player: player, reader: reader, done: make(chan struct{})}
	player.Play()
	go o.watch()
	return o, nil
}

// Close suspends the audio device.
func (c *OtoContext) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *OtoOutput) watch() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-o.reader.closed:
			close(o.done)
			return
		case <-ticker.C:
			if !o.player.IsPlaying() {
				close(o.done)
				return
			}
		}
	}
}

// Wait blocks until the output is closed or the processor fails.
func (o *OtoOutput) Wait() {
	<-o.done
}

// Err returns the error that stopped the stream, if any.
func (o *OtoOutput) Err() error {
	if err := o.player.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Close stops pulling audio from the processor.
func (o *OtoOutput) Close() error {
	o.closeOnce.Do(func() {
		close(o.reader.closed)
		o.player.Pause()
	})
	return o.Err()
}

func (r *processorReader) Read(p []byte) (int, error) {
	select {
	case <-r.closed:
		return 0, io.EOF
	default:
	}
	n := len(p) / bytesPerSample
	if n == 0 {
		return 0, nil
	}
	if cap(r.buf) < n {
		r.buf = make(jacker.AudioBuffer, n)
	}
	r.buf = r.buf[:n]
	if err := r.processor.ProcessAudio(r.buf); err != nil {
		return 0, err
	}
	AudioBufferToFloat32LE(r.buf, p[:0])
	return n * bytesPerSample, nil
}
