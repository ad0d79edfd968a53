package eprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperguessr/paper-guess-service/internal/domain"
)

const landingPage = `<!DOCTYPE html>
<html>
<body>
  <div class="container">
    <h3 class="mb-3">Efficient Lattice-Based Signatures</h3>
    <dl>
      <dt>DOI</dt>
      <dd><a href="https://doi.org/10.1007/978-3-030-00000-0_1">10.1007/978-3-030-00000-0_1</a></dd>
    </dl>
  </div>
</body>
</html>`

const landingPageNoDOI = `<html><body><h3 class="mb-3">  A Paper Without DOI  </h3></body></html>`

const landingPageNoTitle = `<html><body><h3 class="other">Not the title heading</h3></body></html>`

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(Config{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		RetryDelay: time.Millisecond,
		RateLimit:  1000,
	})
}

func TestFetchPDF(t *testing.T) {
	t.Run("downloads PDF bytes", func(t *testing.T) {
		pdf := []byte("%PDF-1.5 fake content")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/2021/0042.pdf", r.URL.Path)
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdf)
		}))
		defer srv.Close()

		got, err := newTestClient(t, srv.URL).FetchPDF(context.Background(), domain.PaperKey{Year: 2021, Sequence: 42})
		require.NoError(t, err)
		assert.Equal(t, pdf, got)
	})

	t.Run("404 is authoritative not found without retry", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchPDF(context.Background(), domain.PaperKey{Year: 2020, Sequence: 9999})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF"))
		}))
		defer srv.Close()

		got, err := newTestClient(t, srv.URL).FetchPDF(context.Background(), domain.PaperKey{Year: 2019, Sequence: 7})
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF"), got)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("render failure after exhausted retries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchPDF(context.Background(), domain.PaperKey{Year: 2019, Sequence: 7})
		assert.ErrorIs(t, err, domain.ErrRenderFailed)
	})

	t.Run("rejects non-PDF content type", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>not a pdf</html>"))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchPDF(context.Background(), domain.PaperKey{Year: 2018, Sequence: 1})
		assert.ErrorIs(t, err, domain.ErrRenderFailed)
	})

	t.Run("rejects oversized PDF", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(make([]byte, 2048))
		}))
		defer srv.Close()

		client := New(Config{
			BaseURL:    srv.URL,
			RetryDelay: time.Millisecond,
			RateLimit:  1000,
			MaxPDFSize: 1024,
		})

		_, err := client.FetchPDF(context.Background(), domain.PaperKey{Year: 2018, Sequence: 1})
		assert.ErrorIs(t, err, domain.ErrRenderFailed)
	})
}

func TestFetchTitleAndDOI(t *testing.T) {
	t.Run("scrapes title and DOI", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/2021/0042", r.URL.Path)
			_, _ = w.Write([]byte(landingPage))
		}))
		defer srv.Close()

		title, doi, err := newTestClient(t, srv.URL).FetchTitleAndDOI(context.Background(), domain.PaperKey{Year: 2021, Sequence: 42})
		require.NoError(t, err)
		assert.Equal(t, "Efficient Lattice-Based Signatures", title)
		assert.Equal(t, "10.1007/978-3-030-00000-0_1", doi)
	})

	t.Run("title without DOI", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(landingPageNoDOI))
		}))
		defer srv.Close()

		title, doi, err := newTestClient(t, srv.URL).FetchTitleAndDOI(context.Background(), domain.PaperKey{Year: 2020, Sequence: 3})
		require.NoError(t, err)
		assert.Equal(t, "A Paper Without DOI", title, "title must be whitespace-trimmed")
		assert.Empty(t, doi)
	})

	t.Run("missing title heading", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(landingPageNoTitle))
		}))
		defer srv.Close()

		_, _, err := newTestClient(t, srv.URL).FetchTitleAndDOI(context.Background(), domain.PaperKey{Year: 2020, Sequence: 3})
		assert.ErrorIs(t, err, domain.ErrNoTitle)
	})

	t.Run("404 landing page", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, _, err := newTestClient(t, srv.URL).FetchTitleAndDOI(context.Background(), domain.PaperKey{Year: 2020, Sequence: 3})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
