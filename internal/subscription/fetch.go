// Package subscription implements the HTTP fetch side of profile
// subscriptions: downloading a remote config body over whatever
// transport-level compression the server chose, and the URL masking
// used when logging subscription addresses.
package subscription

import (
	"bytes"
	stdflate "compress/flate"
	stdgzip "compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// Fetcher downloads subscription bodies. The default client lets the
// transport handle gzip transparently; everything the transport does
// not decode (deflate, br, or a body the server mislabeled) is
// decompressed manually off the response's Content-Encoding header,
// retrying on the raw client when the transport's own gzip decode
// blows up.
type Fetcher struct {
	client    *http.Client
	rawClient *http.Client
}

// New builds a Fetcher with the default and "raw" (no built-in
// decompression) HTTP clients the fallback protocol needs.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		rawClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{DisableCompression: true},
		},
	}
}

const userAgent = "MusicFrog-Despicable-Infiltrator"

// isDecodeError reports whether err is the transport failing to
// decompress a response body it took responsibility for (a server
// sending Content-Encoding: gzip over bytes that are not gzip), as
// opposed to a network failure. The transport's transparent gzip path
// surfaces these as compress/gzip and compress/flate errors while the
// body is being read.
func isDecodeError(err error) bool {
	if err == nil {
		return false
	}
	var corrupt stdflate.CorruptInputError
	return errors.Is(err, stdgzip.ErrHeader) ||
		errors.Is(err, stdgzip.ErrChecksum) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &corrupt)
}

// Fetch retrieves url and returns its body as a UTF-8 string, BOM
// stripped. The Content-Encoding left on the response (the transport
// strips the header for any encoding it decoded itself) always drives
// a manual decompression pass, so deflate and br bodies decode on the
// first request, not only after a retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, encoding, err := f.doFetch(ctx, f.client, url, false)
	if err != nil && isDecodeError(err) {
		body, encoding, err = f.doFetch(ctx, f.rawClient, url, true)
	}
	if err != nil {
		return "", err
	}

	body, err = manualDecompress(body, encoding)
	if err != nil {
		return "", err
	}

	return toCleanUTF8(body), nil
}

// doFetch issues the GET and returns the body bytes plus whatever
// Content-Encoding the response still carries. When the transport
// auto-decompressed (its own gzip handling), it removes the header and
// encoding comes back empty; anything still labeled is still
// compressed.
func (f *Fetcher) doFetch(ctx context.Context, client *http.Client, url string, raw bool) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/yaml, text/plain, */*")
	if raw {
		req.Header.Set("Accept-Encoding", "identity")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", errs.Transport("fetching subscription: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", errs.Transport("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindDecode, "reading subscription body", err)
	}
	if len(data) == 0 {
		return nil, "", errs.Decode("empty")
	}

	return data, resp.Header.Get("Content-Encoding"), nil
}

func looksLikeGzipMagic(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// manualDecompress picks the algorithm from the first comma-separated
// Content-Encoding token, falling back to gzip-by-magic-bytes when the
// header is absent.
func manualDecompress(data []byte, contentEncoding string) ([]byte, error) {
	algo := strings.ToLower(strings.TrimSpace(firstToken(contentEncoding)))
	if algo == "" && looksLikeGzipMagic(data) {
		algo = "gzip"
	}

	switch algo {
	case "", "identity":
		return data, nil
	case "gzip", "x-gzip":
		if !looksLikeGzipMagic(data) {
			// The server labeled plain bytes as gzip. This is the
			// mislabel case the raw-client retry exists for: the body
			// is already the payload.
			return data, nil
		}
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errs.Decode("gzip: %v", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, errs.Decode("gzip: %v", err)
		}
		return out, nil
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, errs.Decode("deflate: %v", err)
		}
		return out, nil
	case "br":
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, errs.Decode("brotli: %v", err)
		}
		return out, nil
	default:
		return nil, errs.Decode("unsupported content-encoding %q", algo)
	}
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[:i]
	}
	return s
}

const byteOrderMark = '\uFEFF'

// toCleanUTF8 lossy-decodes invalid UTF-8 and strips a leading BOM.
func toCleanUTF8(data []byte) string {
	s := string(data)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return strings.TrimPrefix(s, string(byteOrderMark))
}

// MaskSubscriptionURL replaces everything between "link/" and the next
// "?" (or end of string) with "***", for safe logging of subscription
// addresses that embed a token in the path.
func MaskSubscriptionURL(url string) string {
	const marker = "link/"
	i := strings.Index(url, marker)
	if i < 0 {
		return url
	}
	start := i + len(marker)
	end := strings.IndexByte(url[start:], '?')
	if end < 0 {
		return url[:start] + "***"
	}
	return url[:start] + "***" + url[start+end:]
}
