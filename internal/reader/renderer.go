package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ebook-library/internal/domain"
	"ebook-library/internal/epub"
)

// renderer is the rendering loop of one EPUB session attempt. It owns the
// parsed document; nothing outside this goroutine touches it.
type renderer struct {
	bridge      *Bridge
	logger      domain.Logger
	openTimeout time.Duration
	doc         *epub.Document
}

func (r *renderer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.bridge.Done():
			return
		case msg := <-r.bridge.RendererInbox():
			req, ok := msg.(*LoadRequest)
			if !ok {
				continue
			}
			r.load(ctx, req)
		case <-r.bridge.ChapterRequests():
			if index, ok := r.bridge.TakeChapterRequest(); ok {
				r.render(index)
			}
		}
	}
}

func (r *renderer) load(ctx context.Context, req *LoadRequest) {
	r.send(&LogMessage{Text: fmt.Sprintf("opening archive (%d bytes)", len(req.Archive))})

	pctx := ctx
	if r.openTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, r.openTimeout)
		defer cancel()
	}
	doc, err := epub.Parse(pctx, req.Archive)
	if err != nil {
		r.send(&ErrorMessage{Code: CodeOf(err), Message: err.Error()})
		return
	}
	r.doc = doc
	r.send(&LogMessage{Text: fmt.Sprintf("%q: %d chapters via %s", doc.Title, doc.ChapterCount(), doc.Strategy)})
	r.render(req.Resume.Index(doc.ChapterCount()))
}

func (r *renderer) render(index int) {
	if r.doc == nil {
		return
	}
	ch, err := r.doc.RenderChapter(index)
	if err != nil {
		if !errors.Is(err, epub.ErrChapterNotFound) {
			r.send(&ErrorMessage{Code: CodeOf(err), Message: err.Error()})
			return
		}
		ch = r.doc.Placeholder(index)
		if ch == nil {
			r.send(&LogMessage{Text: err.Error()})
			return
		}
		r.send(&LogMessage{Text: "rendering placeholder: " + err.Error()})
	}
	if r.bridge.Superseded() {
		r.send(&LogMessage{Text: fmt.Sprintf("discarding superseded render of chapter %d", index+1)})
		return
	}
	r.send(&ChapterChanged{
		Index:     ch.Index,
		Total:     r.doc.ChapterCount(),
		Title:     ch.Title,
		BookTitle: r.doc.Title,
		Content:   ch.HTML,
	})
}

func (r *renderer) send(m Message) {
	if err := r.bridge.SendToController(m); err != nil && !errors.Is(err, ErrBridgeClosed) {
		r.logger.Error("Failed to send message to controller", err, "kind", m.Kind())
	}
}
