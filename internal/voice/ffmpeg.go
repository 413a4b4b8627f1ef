package voice

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
	maxOpusLen = frameSize * channels * 2
)

// Opener turns a direct media URL into a raw PCM stream: s16le, 48kHz, stereo.
type Opener func(ctx context.Context, link string) (io.ReadCloser, error)

// Encoder turns one PCM frame of frameSize samples per channel into an opus packet.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// ErrNoAudio is returned for a source that ended before a single frame was read.
var ErrNoAudio = errors.New("source produced no audio")

const stderrTail = 4 << 10

// OpenFFmpeg starts ffmpeg reading link and returns its stdout. Once stdout is
// drained the exit status is checked, and a failed ffmpeg surfaces as a read
// error carrying the last line ffmpeg printed. Closing the stream kills the
// process.
func OpenFFmpeg(ctx context.Context, link string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	)
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}
	return &ffmpegStream{out: out, cmd: cmd, stderr: stderr}, nil
}

type ffmpegStream struct {
	out    io.ReadCloser
	cmd    *exec.Cmd
	stderr *tailBuffer

	waitOnce  sync.Once
	waitErr   error
	closeOnce sync.Once
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.out.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (s *ffmpegStream) wait() error {
	s.waitOnce.Do(func() {
		if err := s.cmd.Wait(); err != nil {
			s.waitErr = ffmpegError(s.stderr.String(), err)
		}
	})
	return s.waitErr
}

// Close kills ffmpeg if it is still running. It returns the exit error only
// when ffmpeg had already exited on its own.
func (s *ffmpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		exited := s.cmd.ProcessState != nil
		_ = s.cmd.Process.Kill()
		_ = s.out.Close()
		werr := s.wait()
		if exited {
			err = werr
		}
	})
	return err
}

// ffmpegError adds the last stderr line to err.
func ffmpegError(stderr string, err error) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	lines := strings.Split(stderr, "\n")
	return fmt.Errorf("ffmpeg: %s: %w", strings.TrimSpace(lines[len(lines)-1]), err)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

type opusEncoder struct {
	enc *gopus.Encoder
}

// NewOpusEncoder returns the libopus encoder used for voice connections.
func NewOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

func (e *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	return e.enc.Encode(pcm, frameSize, maxOpusLen)
}

// readFrame fills pcm with one frame from r. A trailing partial frame is
// reported as io.EOF.
func readFrame(r io.Reader, buf []byte, pcm []int16) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return nil
}
