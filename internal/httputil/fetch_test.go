package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGet(t *testing.T) {
	t.Run("returns body and sends user agent", func(t *testing.T) {
		var gotUA string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			_, _ = w.Write([]byte("page"))
		}))
		defer ts.Close()

		c := NewClient(Options{UserAgent: "test-agent"})
		body, err := c.Get(t.Context(), ts.URL)
		require.NoError(t, err)
		assert.Equal(t, "page", string(body))
		assert.Equal(t, "test-agent", gotUA)
	})

	t.Run("non-2xx is a StatusError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		_, err := NewClient(Options{}).Get(t.Context(), ts.URL+"/scan.pdf")
		require.Error(t, err)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
		assert.Equal(t, ts.URL+"/scan.pdf", se.URL)
	})
}
