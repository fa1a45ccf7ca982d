package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor returns an attribute carried by ctx, such as the request id
// set by the HTTP middleware.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler appends extractor attributes to every record it handles.
// Attributes with an empty string value are skipped.
type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

// withContext wraps h only when there is something to extract.
func withContext(h slog.Handler, extractors []ContextExtractor) slog.Handler {
	if len(extractors) == 0 {
		return h
	}
	return &contextHandler{Handler: h, extractors: extractors}
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.extractors))
	for _, extract := range h.extractors {
		attr, ok := extract(ctx)
		if !ok || attr.Equal(slog.String(attr.Key, "")) {
			continue
		}
		attrs = append(attrs, attr)
	}
	if len(attrs) > 0 {
		rec = rec.Clone()
		rec.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}
