package reader

import (
	"errors"
	"testing"
)

func TestEncodeDecodeMessage(t *testing.T) {
	in := &ChapterChanged{Index: 1, Total: 3, Title: "Second", Content: "<p>x</p>"}
	data, err := EncodeMessage(in)
	if err != nil {
		t.Fatalf("EncodeMessage() error = %v", err)
	}
	out, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	cc, ok := out.(*ChapterChanged)
	if !ok {
		t.Fatalf("expected *ChapterChanged, got %T", out)
	}
	if *cc != *in {
		t.Fatalf("decoded %+v, want %+v", cc, in)
	}
}

func TestDecodeMessage_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown kind", `{"kind":"page-turned","payload":{}}`},
		{"not json", `{kind`},
		{"missing payload", `{"kind":"log"}`},
		{"payload type mismatch", `{"kind":"chapter-changed","payload":{"index":"one","total":3}}`},
		{"index out of range", `{"kind":"chapter-changed","payload":{"index":3,"total":3}}`},
		{"empty archive", `{"kind":"load-request","payload":{"archive":""}}`},
		{"unknown error code", `{"kind":"error","payload":{"code":"boom","message":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMessage([]byte(tt.data)); !errors.Is(err, ErrHostBridge) {
				t.Fatalf("expected ErrHostBridge, got %v", err)
			}
		})
	}
}

func TestBridge_Direction(t *testing.T) {
	b := NewBridge(4)
	defer b.Close()

	if err := b.SendToRenderer(&LogMessage{Text: "hi"}); !errors.Is(err, ErrHostBridge) {
		t.Fatalf("log to renderer: expected ErrHostBridge, got %v", err)
	}
	if err := b.SendToController(&LoadRequest{Archive: []byte("x")}); !errors.Is(err, ErrHostBridge) {
		t.Fatalf("load-request to controller: expected ErrHostBridge, got %v", err)
	}
	if err := b.SendToController(&LogMessage{Text: "one"}); err != nil {
		t.Fatalf("SendToController() error = %v", err)
	}
	if err := b.SendToController(&LogMessage{Text: "two"}); err != nil {
		t.Fatalf("SendToController() error = %v", err)
	}
	for _, want := range []string{"one", "two"} {
		got := (<-b.ControllerInbox()).(*LogMessage)
		if got.Text != want {
			t.Fatalf("expected FIFO order, got %q want %q", got.Text, want)
		}
	}
}

func TestBridge_ClosedRejectsSends(t *testing.T) {
	b := NewBridge(1)
	b.Close()
	b.Close()
	if err := b.SendToController(&LogMessage{Text: "late"}); !errors.Is(err, ErrBridgeClosed) {
		t.Fatalf("expected ErrBridgeClosed, got %v", err)
	}
}

func TestBridge_ChapterRequestsCoalesce(t *testing.T) {
	b := NewBridge(1)
	b.RequestChapter(1)
	b.RequestChapter(2)
	b.RequestChapter(4)
	if !b.Superseded() {
		t.Fatalf("expected a pending request")
	}
	<-b.ChapterRequests()
	got, ok := b.TakeChapterRequest()
	if !ok || got != 4 {
		t.Fatalf("expected latest request 4, got %d %v", got, ok)
	}
	if _, ok := b.TakeChapterRequest(); ok {
		t.Fatalf("expected request to be consumed")
	}
}

func TestCodeOf_RoundTrip(t *testing.T) {
	for _, code := range []ErrorCode{CodeFetch, CodeInvalidArchive, CodeNoReadableContent, CodeChapterNotFound, CodeHostBridge} {
		m := &ErrorMessage{Code: code, Message: "x"}
		if got := CodeOf(m.Err()); got != code {
			t.Errorf("CodeOf(%s.Err()) = %s", code, got)
		}
	}
}
