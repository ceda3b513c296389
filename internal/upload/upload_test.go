package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/hijo-electricity/hijo/internal/storage"
)

type part struct {
	field, filename, contentType string
	body                         []byte
}

func multipartRequest(t *testing.T, fields map[string]string, files ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(f.body)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/projects", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestHandler(t *testing.T, maxSize int64) (*Handler, *storage.Local, *[]string) {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var results []string
	h := New(local, maxSize, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithObserver(func(r string) { results = append(results, r) }),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	)
	return h, local, &results
}

func stored(t *testing.T, local *storage.Local) []storage.ObjectInfo {
	t.Helper()
	list, err := local.List(context.Background(), KeyPrefix)
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func TestReceiveStoresImage(t *testing.T) {
	h, local, results := newTestHandler(t, 1024)
	req := multipartRequest(t,
		map[string]string{"titleEn": "<b>Villa</b>"},
		part{"image", "Photo.JPG", "image/jpeg", []byte("jpegdata")},
	)

	f, err := h.Receive(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if f == nil {
		t.Fatal("expected a file")
	}
	if !regexp.MustCompile(`^/uploads/projects/project-1700000000000-\d+\.jpg$`).MatchString(f.Path) {
		t.Errorf("Path = %q", f.Path)
	}
	if f.Size != int64(len("jpegdata")) {
		t.Errorf("Size = %d", f.Size)
	}
	if got := req.FormValue("titleEn"); got != "Villa" {
		t.Errorf("form value not sanitized: %q", got)
	}
	if list := stored(t, local); len(list) != 1 || list[0].Key != f.Key {
		t.Errorf("stored = %v", list)
	}
	if len(*results) != 1 || (*results)[0] != "stored" {
		t.Errorf("observer = %v", *results)
	}
}

func TestReceiveWithoutFile(t *testing.T) {
	h, local, _ := newTestHandler(t, 1024)
	req := multipartRequest(t, map[string]string{"titleEn": "x"})
	f, err := h.Receive(httptest.NewRecorder(), req)
	if err != nil || f != nil {
		t.Fatalf("Receive = %v, %v", f, err)
	}
	if len(stored(t, local)) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestReceiveURLEncoded(t *testing.T) {
	h, _, _ := newTestHandler(t, 1024)
	req := httptest.NewRequest(http.MethodPut, "/api/projects/1", strings.NewReader("titleAr=%3Ci%3Ex%3C%2Fi%3E"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	f, err := h.Receive(httptest.NewRecorder(), req)
	if err != nil || f != nil {
		t.Fatalf("Receive = %v, %v", f, err)
	}
	if got := req.PostFormValue("titleAr"); got != "x" {
		t.Errorf("titleAr = %q", got)
	}
}

func TestReceiveRejections(t *testing.T) {
	png := []byte("pngdata")
	tests := []struct {
		name  string
		files []part
		kind  error
		msg   string
	}{
		{
			name:  "bad extension",
			files: []part{{"image", "doc.pdf", "image/png", png}},
			kind:  ErrUnsupportedMediaType,
			msg:   "Only image files are allowed (jpeg, jpg, png, gif, webp)",
		},
		{
			name:  "bad mime",
			files: []part{{"image", "photo.png", "application/pdf", png}},
			kind:  ErrUnsupportedMediaType,
			msg:   "Only image files are allowed (jpeg, jpg, png, gif, webp)",
		},
		{
			name:  "svg",
			files: []part{{"image", "logo.svg", "image/svg+xml", png}},
			kind:  ErrUnsupportedMediaType,
		},
		{
			name:  "wrong field",
			files: []part{{"photo", "a.png", "image/png", png}},
			kind:  ErrUnexpectedField,
			msg:   "Upload error: Unexpected field",
		},
		{
			name: "two files",
			files: []part{
				{"image", "a.png", "image/png", png},
				{"image", "b.png", "image/png", png},
			},
			kind: ErrTooManyFiles,
			msg:  "Upload error: Too many files",
		},
		{
			name:  "too large",
			files: []part{{"image", "big.png", "image/png", bytes.Repeat([]byte("x"), 2048)}},
			kind:  ErrFileTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, local, results := newTestHandler(t, 1024)
			_, err := h.Receive(httptest.NewRecorder(), multipartRequest(t, nil, tt.files...))
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
			var ue *Error
			if !errors.As(err, &ue) {
				t.Fatalf("err is not *Error: %T", err)
			}
			if tt.msg != "" && ue.Message != tt.msg {
				t.Errorf("Message = %q, want %q", ue.Message, tt.msg)
			}
			if len(stored(t, local)) != 0 {
				t.Error("rejected upload left a file behind")
			}
			if len(*results) != 1 || (*results)[0] != "rejected" {
				t.Errorf("observer = %v", *results)
			}
		})
	}
}

func TestReceiveBodyBeyondLimit(t *testing.T) {
	h, local, _ := newTestHandler(t, 16)
	huge := bytes.Repeat([]byte("x"), formOverhead+64)
	_, err := h.Receive(httptest.NewRecorder(),
		multipartRequest(t, nil, part{"image", "a.png", "image/png", huge}))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	if len(stored(t, local)) != 0 {
		t.Error("oversized upload left a file behind")
	}
}

func TestDiscardRemovesFile(t *testing.T) {
	h, local, _ := newTestHandler(t, 1024)
	req := multipartRequest(t, nil, part{"image", "a.webp", "image/webp", []byte("webp")})
	f, err := h.Receive(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithFile(context.Background(), f)
	if FromContext(ctx) != f {
		t.Fatal("FromContext did not return the stored file")
	}

	h.Discard(ctx, f)
	if len(stored(t, local)) != 0 {
		t.Error("Discard left the file")
	}
	h.Discard(ctx, f)
	h.Discard(ctx, nil)
	h.Remove(ctx, "/elsewhere/a.jpg")
}

func TestReceiveRemovesTempFiles(t *testing.T) {
	h, _, _ := newTestHandler(t, 1<<20)
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	// Middleware hands Receive a copy of the server's request.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(context.WithoutCancel(r.Context()))
		if _, err := h.Receive(w, r); err != nil {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	big := bytes.Repeat([]byte("x"), memoryLimit*2)
	for _, p := range []part{
		{"image", "big.png", "image/png", big},
		{"image", "big.txt", "text/plain", big},
	} {
		body := multipartRequest(t, nil, p)
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/projects", body.Body)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", body.Header.Get("Content-Type"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		entries, err := os.ReadDir(tmp)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			t.Errorf("%s: temp file %s left behind", p.filename, e.Name())
		}
	}
}
