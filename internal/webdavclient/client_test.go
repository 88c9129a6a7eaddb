package webdavclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePropfindResponse = `<?xml version="1.0" encoding="utf-8"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/dav/profiles/</d:href>
    <d:propstat>
      <d:prop>
        <d:getlastmodified>Tue, 19 Dec 2017 22:02:36 GMT</d:getlastmodified>
        <d:resourcetype><d:collection/></d:resourcetype>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/profiles/default.yaml</d:href>
    <d:propstat>
      <d:prop>
        <d:getlastmodified>Tue, 19 Dec 2017 22:02:36 GMT</d:getlastmodified>
        <d:getcontentlength>42</d:getcontentlength>
        <d:getetag>&quot;abc123&quot;</d:getetag>
        <d:resourcetype/>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/profiles/broken.yaml</d:href>
    <d:propstat>
      <d:prop>
        <d:quota-used-bytes/>
      </d:prop>
      <d:status>HTTP/1.1 404 Not Found</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

func TestListParsesMultistatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROPFIND", r.Method)
		assert.Equal(t, "1", r.Header.Get("Depth"))
		u, p, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", u)
		assert.Equal(t, "secret", p)
		w.WriteHeader(207)
		_, _ = w.Write([]byte(samplePropfindResponse))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "alice", "secret")
	require.NoError(t, err)

	entries, err := c.List(context.Background(), "profiles")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var dir, file *Entry
	for i := range entries {
		if entries[i].IsDir {
			dir = &entries[i]
		} else {
			file = &entries[i]
		}
	}
	require.NotNil(t, dir)
	require.NotNil(t, file)
	assert.Equal(t, "abc123", file.ETag)
	assert.Equal(t, int64(42), file.ContentLength)
	assert.False(t, file.LastModified.IsZero())
}

func TestGetReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("port: 1\n"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "u", "p")
	require.NoError(t, err)
	body, err := c.Get(context.Background(), "profiles/default.yaml")
	require.NoError(t, err)
	assert.Equal(t, "port: 1\n", string(body))
}

func TestPutSendsIfMatchAndReturnsETag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, `"old-etag"`, r.Header.Get("If-Match"))
		w.Header().Set("ETag", `"new-etag"`)
		w.WriteHeader(201)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "u", "p")
	require.NoError(t, err)
	etag, err := c.Put(context.Background(), "profiles/default.yaml", []byte("data"), "old-etag")
	require.NoError(t, err)
	assert.Equal(t, "new-etag", etag)
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "u", "p")
	require.NoError(t, err)
	assert.NoError(t, c.Delete(context.Background(), "missing.yaml"))
}

func TestMkdirTreatsMethodNotAllowedAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "u", "p")
	require.NoError(t, err)
	assert.NoError(t, c.Mkdir(context.Background(), "profiles"))
}

func TestMoveSetsDestinationAndOverwrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MOVE", r.Method)
		assert.Equal(t, "T", r.Header.Get("Overwrite"))
		assert.Contains(t, r.Header.Get("Destination"), "/dest.yaml")
		w.WriteHeader(201)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "u", "p")
	require.NoError(t, err)
	assert.NoError(t, c.Move(context.Background(), "src.yaml", "dest.yaml"))
}

func TestListStripsBasePathFromHrefs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(207)
		_, _ = w.Write([]byte(samplePropfindResponse))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/dav", "u", "p")
	require.NoError(t, err)

	entries, err := c.List(context.Background(), "profiles")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotContains(t, e.Path, "/dav/")
	}
}

func TestNewNormalizesTrailingSlash(t *testing.T) {
	c, err := New("https://dav.example.com/remote.php/webdav", "u", "p")
	require.NoError(t, err)
	assert.Equal(t, "/remote.php/webdav/", c.baseURL.Path)
}
