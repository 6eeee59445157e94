package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCSETestClient(serverURL string) *CSEClient {
	return &CSEClient{
		key:     "cse-key",
		cx:      "cse-cx",
		baseURL: serverURL,
		ua:      "test-agent/1.0",
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  zap.NewNop(),
	}
}

func TestCSEClient(t *testing.T) {
	t.Run("no credentials means empty results", func(t *testing.T) {
		c := newCSETestClient("http://127.0.0.1:0")
		c.key = ""

		items, err := c.SearchGeneral(context.Background(), "гречка", 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("branded search restricts to allowlisted domains", func(t *testing.T) {
		var seen url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.URL.Query()
			fmt.Fprint(w, `{"items":[{"link":"https://av.ru/i/42/","title":"Гречка"}]}`)
		}))
		defer srv.Close()

		c := newCSETestClient(srv.URL)
		items, err := c.SearchBranded(context.Background(), "гречка", 8)

		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "https://av.ru/i/42/", items[0].Link)

		assert.Equal(t, "cse-key", seen.Get("key"))
		assert.Equal(t, "cse-cx", seen.Get("cx"))
		assert.Equal(t, "8", seen.Get("num"))
		assert.Equal(t, "i", seen.Get("siteSearchFilter"))
		assert.Contains(t, seen.Get("siteSearch"), "av.ru")
		assert.True(t, strings.HasPrefix(seen.Get("q"), "гречка "))
		assert.Contains(t, seen.Get("q"), "калорийность")
		assert.Contains(t, seen.Get("q"), "site:av.ru")
	})

	t.Run("general search sets no site filter", func(t *testing.T) {
		var seen url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.URL.Query()
			fmt.Fprint(w, `{"items":[]}`)
		}))
		defer srv.Close()

		c := newCSETestClient(srv.URL)
		_, err := c.SearchGeneral(context.Background(), "домашний суп", 10)

		require.NoError(t, err)
		assert.Equal(t, "домашний суп", seen.Get("q"))
		assert.Empty(t, seen.Get("siteSearch"))
		assert.Empty(t, seen.Get("searchType"))
	})

	t.Run("image search returns first link", func(t *testing.T) {
		var seen url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.URL.Query()
			fmt.Fprint(w, `{"items":[{"link":"https://img.example/label.jpg"}]}`)
		}))
		defer srv.Close()

		c := newCSETestClient(srv.URL)
		link, err := c.SearchImage(context.Background(), "cereal nutrition facts")

		require.NoError(t, err)
		assert.Equal(t, "https://img.example/label.jpg", link)
		assert.Equal(t, "image", seen.Get("searchType"))
		assert.Equal(t, "1", seen.Get("num"))
	})

	t.Run("items without links are dropped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"items":[{"title":"no link"},{"link":"https://ok.example/1"}]}`)
		}))
		defer srv.Close()

		c := newCSETestClient(srv.URL)
		items, err := c.SearchGeneral(context.Background(), "суп", 10)

		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "https://ok.example/1", items[0].Link)
	})

	t.Run("quota exhaustion degrades to empty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := newCSETestClient(srv.URL)
		items, err := c.SearchGeneral(context.Background(), "суп", 10)

		require.NoError(t, err)
		assert.Empty(t, items)
	})
}
