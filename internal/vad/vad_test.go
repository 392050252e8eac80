package vad

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

type fakeModel struct {
	ann      *Annotation
	err      error
	gotPath  string
	gotBytes []byte
}

func (m *fakeModel) Annotate(_ context.Context, path string) (*Annotation, error) {
	m.gotPath = path
	m.gotBytes, _ = os.ReadFile(path)
	return m.ann, m.err
}

func newTestDetector(t *testing.T, m Model) (*Detector, string) {
	dir := t.TempDir()
	return NewDetector(m, dir, log.New(io.Discard, "", 0)), dir
}

func TestDetectNoSpeech(t *testing.T) {
	d, _ := newTestDetector(t, &fakeModel{ann: &Annotation{}})

	segments, err := d.Detect(context.Background(), []byte("silence"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if segments == nil {
		t.Fatal("Detect() returned nil, want empty slice")
	}
	if len(segments) != 0 {
		t.Errorf("Detect() = %v, want no segments", segments)
	}

	body, _ := json.Marshal(map[string]any{"voice_segments": segments})
	if string(body) != `{"voice_segments":[]}` {
		t.Errorf("json = %s, want empty list", body)
	}
}

func TestDetectStagesRawAudioAndCleansUp(t *testing.T) {
	m := &fakeModel{ann: &Annotation{Content: []Track{
		{Segment: Segment{Start: 0.5, End: 1.2}, Label: "SPEECH"},
	}}}
	d, dir := newTestDetector(t, m)

	raw := []byte("raw webm bytes")
	segments, err := d.Detect(context.Background(), raw)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(segments) != 1 || segments[0] != (Segment{Start: 0.5, End: 1.2}) {
		t.Errorf("Detect() = %v, want [{0.5 1.2}]", segments)
	}
	if string(m.gotBytes) != string(raw) {
		t.Errorf("model saw %q, want raw upload %q", m.gotBytes, raw)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp dir has %d entries after Detect(), want 0", len(entries))
	}
}

func TestDetectModelError(t *testing.T) {
	d, dir := newTestDetector(t, &fakeModel{err: errors.New("token rejected")})

	_, err := d.Detect(context.Background(), []byte("audio"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Detect() error = %v, want ErrUnavailable", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp dir has %d entries after failed Detect(), want 0", len(entries))
	}
}

func TestSupport(t *testing.T) {
	tests := []struct {
		name string
		ann  *Annotation
		want []Segment
	}{
		{name: "nil", ann: nil, want: []Segment{}},
		{
			name: "disjoint kept in order",
			ann: &Annotation{Content: []Track{
				{Segment: Segment{Start: 0, End: 1}},
				{Segment: Segment{Start: 2, End: 3}},
			}},
			want: []Segment{{0, 1}, {2, 3}},
		},
		{
			name: "overlapping merged",
			ann: &Annotation{Content: []Track{
				{Segment: Segment{Start: 0, End: 1.5}},
				{Segment: Segment{Start: 1, End: 2}},
				{Segment: Segment{Start: 2, End: 2.5}},
			}},
			want: []Segment{{0, 2.5}},
		},
		{
			name: "contained segment absorbed",
			ann: &Annotation{Content: []Track{
				{Segment: Segment{Start: 0, End: 3}},
				{Segment: Segment{Start: 1, End: 2}},
			}},
			want: []Segment{{0, 3}},
		},
		{
			name: "degenerate dropped",
			ann: &Annotation{Content: []Track{
				{Segment: Segment{Start: 1, End: 1}},
				{Segment: Segment{Start: 2, End: 1}},
				{Segment: Segment{Start: 3, End: 4}},
			}},
			want: []Segment{{3, 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Support(tt.ann)
			if len(got) != len(tt.want) {
				t.Fatalf("Support() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Support()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSidecarClientAnnotate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/voice-activity" {
			t.Errorf("path = %q, want /v1/voice-activity", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer hf-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "audio bytes" {
			t.Errorf("uploaded = %q, want %q", data, "audio bytes")
		}
		_, _ = w.Write([]byte(`{"content":[{"segment":{"start":0.1,"end":0.9},"track":"A","label":"SPEECH"}]}`))
	}))
	defer srv.Close()

	path := t.TempDir() + "/in.wav"
	if err := os.WriteFile(path, []byte("audio bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := NewSidecarClient(SidecarConfig{BaseURL: srv.URL, Token: "hf-token"})
	ann, err := c.Annotate(context.Background(), path)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if len(ann.Content) != 1 || ann.Content[0].Segment != (Segment{Start: 0.1, End: 0.9}) {
		t.Errorf("Annotate() = %+v", ann)
	}
}

func TestSidecarClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	path := t.TempDir() + "/in.wav"
	_ = os.WriteFile(path, []byte("x"), 0o600)

	c := NewSidecarClient(SidecarConfig{BaseURL: srv.URL})
	if _, err := c.Annotate(context.Background(), path); err == nil {
		t.Error("Annotate() error = nil, want error on 503")
	}
}

func TestSidecarClientInterface(t *testing.T) {
	var _ Model = (*SidecarClient)(nil)
}
