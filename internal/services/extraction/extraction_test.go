package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// fakePages is an in-memory pageSource.
type fakePages struct {
	pages []string
	errAt int // 1-based page that fails; 0 = none
}

func (f fakePages) NumPage() int { return len(f.pages) }

func (f fakePages) PageText(i int) (string, error) {
	if i == f.errAt {
		return "", errors.New("bad content stream")
	}
	return f.pages[i-1], nil
}

// fakeRunner returns canned command output.
type fakeRunner struct {
	stdout []byte
	err    error

	gotName string
	gotArgs []string
	gotIn   []byte
}

func (r *fakeRunner) Run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	r.gotName, r.gotArgs, r.gotIn = name, args, stdin
	return r.stdout, []byte("stderr output"), r.err
}

// recorder collects progress callbacks.
type recorder struct{ got []int }

func (r *recorder) fn(p int) { r.got = append(r.got, p) }

func TestExtractPages(t *testing.T) {
	tests := []struct {
		name         string
		src          fakePages
		wantText     string
		wantProgress []int
		wantErr      bool
	}{
		{
			name:         "pages joined with line breaks",
			src:          fakePages{pages: []string{"first page", "second page", "third page"}},
			wantText:     "first page\nsecond page\nthird page",
			wantProgress: []int{33, 66, 100},
		},
		{
			name:         "surrounding whitespace trimmed",
			src:          fakePages{pages: []string{"  hello  ", "world \n"}},
			wantText:     "hello  \nworld",
			wantProgress: []int{50, 100},
		},
		{
			name:    "no pages",
			src:     fakePages{},
			wantErr: true,
		},
		{
			name:    "blank document is a failure",
			src:     fakePages{pages: []string{"  ", "\n"}},
			wantErr: true,
		},
		{
			name:    "page parse error",
			src:     fakePages{pages: []string{"ok", "broken"}, errAt: 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			text, err := extractPages(context.Background(), tt.src, rec.fn, zap.NewNop())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.KindExtraction))
				assert.Empty(t, text)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantProgress, rec.got)
		})
	}
}

func TestPDFExtractor_InvalidDocument(t *testing.T) {
	e := NewPDFExtractor(nil)
	file := &models.UploadedFile{Name: "broken.pdf", MediaType: MediaTypePDF, Data: []byte("this is not a pdf")}

	text, err := e.Extract(context.Background(), file, nil)
	require.Error(t, err)
	assert.Empty(t, text)
	assert.True(t, apperrors.Is(err, apperrors.KindExtraction))
}

func TestImageExtractor(t *testing.T) {
	file := &models.UploadedFile{Name: "post.png", MediaType: MediaTypePNG, Data: []byte{0x89, 'P', 'N', 'G'}}

	t.Run("recognized text is normalized", func(t *testing.T) {
		runner := &fakeRunner{stdout: []byte("Hello world   \r\nSecond line\f\n")}
		e := NewImageExtractor("", "", runner, nil)
		rec := &recorder{}

		text, err := e.Extract(context.Background(), file, rec.fn)
		require.NoError(t, err)
		assert.Equal(t, "Hello world\nSecond line", text)
		assert.Equal(t, []int{0, 100}, rec.got)

		assert.Equal(t, "tesseract", runner.gotName)
		assert.Equal(t, []string{"stdin", "stdout", "-l", "eng"}, runner.gotArgs)
		assert.Equal(t, file.Data, runner.gotIn)
	})

	t.Run("recognizer error", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("exit status 1")}
		e := NewImageExtractor("/usr/bin/tesseract", "deu", runner, nil)

		_, err := e.Extract(context.Background(), file, nil)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindExtraction))
		assert.Equal(t, "/usr/bin/tesseract", runner.gotName)
	})

	t.Run("no usable text", func(t *testing.T) {
		runner := &fakeRunner{stdout: []byte(" \n\f ")}
		e := NewImageExtractor("", "", runner, nil)
		rec := &recorder{}

		_, err := e.Extract(context.Background(), file, rec.fn)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindExtraction))
		assert.Equal(t, []int{0}, rec.got)
	})
}

// stubService records which variant the router picked.
type stubService struct {
	name   string
	called bool
}

func (s *stubService) Extract(context.Context, *models.UploadedFile, ProgressFunc) (string, error) {
	s.called = true
	return s.name, nil
}

func TestRouter(t *testing.T) {
	tests := []struct {
		mediaType string
		want      string
		wantErr   bool
	}{
		{"application/pdf", "document", false},
		{"image/jpeg", "image", false},
		{"image/PNG", "image", false},
		{"image/webp; charset=binary", "image", false},
		{"image/svg+xml", "", true},
		{"text/plain", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			img, doc := &stubService{name: "image"}, &stubService{name: "document"}
			r := NewRouter(img, doc, nil)

			got, err := r.Extract(context.Background(), &models.UploadedFile{Name: "f", MediaType: tt.mediaType}, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.KindExtraction))
				assert.False(t, img.called || doc.called)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccepts(t *testing.T) {
	for _, mt := range AcceptedMediaTypes {
		assert.True(t, Accepts(mt), mt)
	}
	assert.True(t, Accepts("Image/JPEG"))
	assert.False(t, Accepts("image/tiff"))
	assert.False(t, Accepts("application/zip"))
	assert.False(t, Accepts(""))
}

func TestDemoExtractor(t *testing.T) {
	rec := &recorder{}
	text, err := DemoExtractor{}.Extract(context.Background(), &models.UploadedFile{Name: "brunch.jpg"}, rec.fn)

	require.NoError(t, err)
	assert.Contains(t, text, "brunch.jpg")
	assert.Equal(t, []int{0, 25, 50, 75, 100}, rec.got)
}

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, LooksLikePDF([]byte("%PDF-1.7\n")))
	assert.False(t, LooksLikePDF([]byte("%PD")))
	assert.False(t, LooksLikePDF([]byte("GIF89a")))
}
