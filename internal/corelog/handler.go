// Package corelog wraps log/slog with the line format the rest of the
// core uses for diagnostics: a timestamp, a level, a message, and any
// attributes flattened onto one line.
package corelog

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Handler is a slog.Handler that writes a flattened, single-line
// record to an optional file sink and, for warnings and above (or
// always when debug is enabled), to stderr as well.
type Handler struct {
	out   io.Writer
	h     slog.Handler
	mu    *sync.Mutex
	debug bool
	errW  io.Writer
}

// NewHandler builds a Handler writing to out (which may be nil to
// disable the file sink) using opts for level filtering.
func NewHandler(out io.Writer, errW io.Writer, opts *slog.HandlerOptions) *Handler {
	return &Handler{
		out:  out,
		errW: errW,
		h:    slog.NewTextHandler(io.Discard, opts),
		mu:   &sync.Mutex{},
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, errW: h.errW, h: h.h.WithAttrs(attrs), mu: h.mu, debug: h.debug}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, errW: h.errW, h: h.h.WithGroup(name), mu: h.mu, debug: h.debug}
}

// WithDebug returns a copy of h that always mirrors records to the
// error sink, regardless of level.
func (h *Handler) WithDebug() *Handler {
	return &Handler{out: h.out, errW: h.errW, h: h.h, mu: h.mu, debug: true}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	formattedTime := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{formattedTime, level, r.Message}
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, a.Key+"="+a.Value.String())
		return true
	})
	line := strings.Join(strs, " ") + "\n"
	b := []byte(line)

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}
	if h.debug || r.Level >= slog.LevelWarn {
		if h.errW != nil {
			_, err = h.errW.Write(b)
		}
	}
	return err
}
