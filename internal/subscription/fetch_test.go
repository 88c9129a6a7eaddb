package subscription

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSubscriptionURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://sub.example.com/link/abc123?flag=1", "https://sub.example.com/link/***?flag=1"},
		{"https://sub.example.com/link/abc123", "https://sub.example.com/link/***"},
		{"https://sub.example.com/other/path", "https://sub.example.com/other/path"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MaskSubscriptionURL(c.in))
	}
}

func TestFetchPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/yaml, text/plain, */*", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("port: 7890\n"))
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "port: 7890\n", got)
}

func TestFetchStripsBOM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\ufeffport: 7890\n"))
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "port: 7890\n", got)
}

func TestFetchEmptyBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchNonTwoXXFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestManualDecompressGzipByHeader(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("port: 1\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := manualDecompress(buf.Bytes(), "gzip")
	require.NoError(t, err)
	assert.Equal(t, "port: 1\n", string(out))
}

func TestManualDecompressGzipByMagicBytes(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("port: 2\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := manualDecompress(buf.Bytes(), "")
	require.NoError(t, err)
	assert.Equal(t, "port: 2\n", string(out))
}

func TestManualDecompressBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte("port: 3\n"))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	out, err := manualDecompress(buf.Bytes(), "br")
	require.NoError(t, err)
	assert.Equal(t, "port: 3\n", string(out))
}

func TestManualDecompressUnsupportedFails(t *testing.T) {
	_, err := manualDecompress([]byte("whatever"), "compress")
	assert.Error(t, err)
}

func TestManualDecompressIdentityPassthrough(t *testing.T) {
	out, err := manualDecompress([]byte("raw text"), "identity")
	require.NoError(t, err)
	assert.Equal(t, "raw text", string(out))
}

func TestIsDecodeError(t *testing.T) {
	assert.True(t, isDecodeError(gzip.ErrHeader))
	assert.True(t, isDecodeError(fmt.Errorf("reading body: %w", gzip.ErrChecksum)))
	assert.True(t, isDecodeError(io.ErrUnexpectedEOF))
	assert.True(t, isDecodeError(flate.CorruptInputError(42)))
	assert.False(t, isDecodeError(errors.New("connection refused")))
	assert.False(t, isDecodeError(nil))
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetchGzipLabeledBody(t *testing.T) {
	body := gzipBytes(t, "port: 10\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "port: 10\n", got)
}

// The transport only handles gzip on its own; a deflate body arrives
// untouched on the first response and must decode off the header.
func TestFetchDeflateFirstResponse(t *testing.T) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write([]byte("port: 11\n"))
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "deflate")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "port: 11\n", got)
}

func TestFetchBrotliFirstResponse(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte("port: 12\n"))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "port: 12\n", got)
}

// A server that labels identity bytes as gzip trips the transport's
// transparent decode on the first request; the retry on the raw
// client with Accept-Encoding: identity must recover the plaintext.
func TestFetchMislabeledGzipRetriesOnRawClient(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write([]byte("port: 13\nmode: rule\n"))
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "port: 13\nmode: rule\n", got)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests), "expected the raw-client retry to fire")
}

func TestToCleanUTF8InvalidBytes(t *testing.T) {
	invalid := []byte{'p', 'o', 'r', 't', 0xff, 0xfe}
	got := toCleanUTF8(invalid)
	assert.True(t, len(got) > 0)
}
