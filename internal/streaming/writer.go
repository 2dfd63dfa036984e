package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"fireshare/internal/logging"
)

var (
	// ErrWriteTimeout indicates a chunk could not be delivered within the
	// write timeout, usually because the client stopped reading.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the request context ended before the stream
	// completed.
	ErrClientGone = errors.New("client disconnected")
)

// Config controls how a body is copied to the client.
type Config struct {
	// WriteTimeout bounds the delivery of a single chunk.
	WriteTimeout time.Duration
	// ChunkSize is how much is read from the source per write.
	ChunkSize int
}

// DefaultConfig returns the settings used for video bodies.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    256 * 1024,
	}
}

// Writer copies a body to an http.ResponseWriter in chunks, extending the
// connection's write deadline before each chunk and flushing after it.
type Writer struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	ctx          context.Context
	config       Config
	start        time.Time
	bytesWritten int64
	deadlines    bool
}

// NewWriter creates a Writer for one response.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultConfig().ChunkSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Writer{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       ctx,
		config:    config,
		start:     time.Now(),
		deadlines: true,
	}
}

// ReadFrom copies src to the client until EOF, a write error, or the
// request context ends.
func (sw *Writer) ReadFrom(src io.Reader) (int64, error) {
	buf := make([]byte, sw.config.ChunkSize)
	defer sw.clearDeadline()

	for {
		if err := sw.ctx.Err(); err != nil {
			return sw.bytesWritten, ErrClientGone
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if err := sw.writeChunk(buf[:n]); err != nil {
				return sw.bytesWritten, err
			}
		}
		if errors.Is(rerr, io.EOF) {
			return sw.bytesWritten, nil
		}
		if rerr != nil {
			return sw.bytesWritten, rerr
		}
	}
}

func (sw *Writer) writeChunk(p []byte) error {
	if sw.deadlines {
		err := sw.rc.SetWriteDeadline(time.Now().Add(sw.config.WriteTimeout))
		if errors.Is(err, http.ErrNotSupported) {
			sw.deadlines = false
		}
	}

	n, err := sw.w.Write(p)
	sw.bytesWritten += int64(n)
	if err != nil {
		if errors.Is(err, context.Canceled) || sw.ctx.Err() != nil {
			return ErrClientGone
		}
		if isTimeout(err) {
			return ErrWriteTimeout
		}
		return err
	}

	if err := sw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func (sw *Writer) clearDeadline() {
	if sw.deadlines {
		_ = sw.rc.SetWriteDeadline(time.Time{})
	}
}

// Stats returns bytes written and time elapsed since the Writer was created.
func (sw *Writer) Stats() (bytesWritten int64, duration time.Duration) {
	return sw.bytesWritten, time.Since(sw.start)
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// Stream copies r to w and returns the bytes written.
func Stream(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) (int64, error) {
	sw := NewWriter(ctx, w, config)
	n, err := sw.ReadFrom(r)

	_, duration := sw.Stats()
	logging.Debug("Stream finished: %d bytes in %v (err=%v)", n, duration.Round(time.Millisecond), err)
	return n, err
}
