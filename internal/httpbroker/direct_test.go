package httpbroker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirect_GetRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "novelhost/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "bar", r.URL.Query().Get("foo"))
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	d, err := NewDirect(100)
	require.NoError(t, err)

	resp, respErr := d.Request(context.Background(), Request{
		Method: MethodGet,
		URL:    srv.URL,
		Params: []KV{{Key: "foo", Value: "bar"}},
	})
	require.Nil(t, respErr)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "hello", string(resp.Body))
}

func TestDirect_NonSuccessStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d, err := NewDirect(100)
	require.NoError(t, err)

	resp, respErr := d.Request(context.Background(), Request{Method: MethodGet, URL: srv.URL})
	require.Nil(t, respErr)
	assert.False(t, resp.IsSuccess())

	statusErr := resp.ErrorForStatus()
	require.NotNil(t, statusErr)
	assert.Equal(t, ErrKindStatus, statusErr.Kind)
	assert.EqualValues(t, http.StatusNotFound, *statusErr.Status)
}

func TestDirect_MultipartFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "bar", r.FormValue("foo"))
		file, header, err := r.FormFile("upload")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "data.txt", header.Filename)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewDirect(100)
	require.NoError(t, err)

	resp, respErr := d.Request(context.Background(), Request{
		Method: MethodPost,
		URL:    srv.URL,
		Body: &RequestBody{
			Form: []FormPart{
				{Name: "foo", Text: "bar"},
				{Name: "upload", IsFile: true, Filename: "data.txt", Binary: []byte("contents")},
			},
		},
	})
	require.Nil(t, respErr)
	assert.True(t, resp.IsSuccess())
}

func TestDirect_InvalidURLIsBadResponse(t *testing.T) {
	d, err := NewDirect(100)
	require.NoError(t, err)

	_, respErr := d.Request(context.Background(), Request{Method: MethodGet, URL: "://not-a-url"})
	require.NotNil(t, respErr)
	assert.Equal(t, ErrKindBadResponse, respErr.Kind)
}

func TestDirect_PreservesRepeatedResponseHeaderValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Multi", "one")
		w.Header().Add("X-Multi", "two")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewDirect(100)
	require.NoError(t, err)

	resp, respErr := d.Request(context.Background(), Request{Method: MethodGet, URL: srv.URL})
	require.Nil(t, respErr)

	var values []string
	for _, h := range resp.Headers {
		if h.Key == "X-Multi" {
			values = append(values, h.Value)
		}
	}
	assert.ElementsMatch(t, []string{"one", "two"}, values)
}
