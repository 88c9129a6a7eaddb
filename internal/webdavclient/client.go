// Package webdavclient implements the small set of WebDAV verbs the
// sync engine needs against a Basic-authenticated server: PROPFIND
// listing, GET, PUT with optional If-Match, DELETE, MOVE and MKCOL.
package webdavclient

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
	"github.com/zhugenanbei181/music-frog-sub001/internal/pacer"
)

// Entry is a single remote file or directory, as surfaced by List.
type Entry struct {
	Path          string
	ETag          string
	LastModified  time.Time
	ContentLength int64
	IsDir         bool
}

// Client talks to one WebDAV server rooted at baseURL.
type Client struct {
	baseURL    *url.URL
	user, pass string
	httpClient *http.Client
	pacer      *pacer.Pacer
}

// New builds a Client. baseURL's path is normalized to end in "/".
func New(baseURL, user, pass string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errs.Validation("invalid WebDAV URL %q: %v", baseURL, err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{
		baseURL:    u,
		user:       user,
		pass:       pass,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		pacer:      pacer.New(pacer.RetriesOption(3), pacer.CalculatorOption(pacer.NewDefault())),
	}, nil
}

func (c *Client) resolve(p string) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(p), body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.pass)
	return req, nil
}

func shouldRetry(resp *http.Response, err error) (bool, error) {
	if err != nil {
		return true, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, errs.Transport("HTTP %d", resp.StatusCode)
	}
	return false, nil
}

// List issues PROPFIND with Depth: 1 against p and returns its
// immediate children.
func (c *Client) List(ctx context.Context, p string) ([]Entry, error) {
	var body []byte
	err := c.pacer.Call(func() (bool, error) {
		req, err := c.newRequest(ctx, "PROPFIND", p, nil)
		if err != nil {
			return false, err
		}
		req.Header.Set("Depth", "1")
		resp, err := c.httpClient.Do(req)
		if retry, rerr := shouldRetry(resp, err); retry || rerr != nil {
			return retry, rerr
		}
		defer resp.Body.Close()
		if resp.StatusCode != 207 && resp.StatusCode/100 != 2 {
			return false, errs.Transport("PROPFIND %s: HTTP %d", p, resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return false, err
	})
	if err != nil {
		return nil, err
	}

	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, errs.Decode("parsing PROPFIND response: %v", err)
	}
	entries, err := parseMultistatus(&ms)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Path = c.stripBase(entries[i].Path)
	}
	return entries, nil
}

// stripBase rewrites a server-absolute href to a path relative to the
// client's base URL (keeping one leading slash), so callers can feed
// listed paths straight back into Get/Put/List without the base path
// being joined on twice. Servers that return full URLs in href are
// reduced to their path component first.
func (c *Client) stripBase(href string) string {
	if strings.Contains(href, "://") {
		if u, err := url.Parse(href); err == nil {
			href = u.Path
		}
	}
	base := c.baseURL.Path
	if base != "/" && strings.HasPrefix(href, base) {
		href = href[len(base)-1:]
	}
	return href
}

func parseMultistatus(ms *multistatus) ([]Entry, error) {
	entries := make([]Entry, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		prop, ok := firstOKPropstat(r.Propstats)
		if !ok {
			continue
		}
		href, err := url.QueryUnescape(r.Href)
		if err != nil {
			href = r.Href
		}
		entries = append(entries, Entry{
			Path:          href,
			ETag:          strings.Trim(prop.ETag, `"`),
			LastModified:  parseRFC2822(prop.LastModified),
			ContentLength: parseContentLength(prop.ContentLength),
			IsDir:         prop.ResourceType.Collection != nil,
		})
	}
	return entries, nil
}

func firstOKPropstat(propstats []davPropstat) (davProp, bool) {
	for _, ps := range propstats {
		if strings.Contains(ps.Status, "200") {
			return ps.Prop, true
		}
	}
	return davProp{}, false
}

func parseRFC2822(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return time.Now()
	}
	return t
}

func parseContentLength(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Get downloads p's contents.
func (c *Client) Get(ctx context.Context, p string) ([]byte, error) {
	var body []byte
	err := c.pacer.Call(func() (bool, error) {
		req, err := c.newRequest(ctx, http.MethodGet, p, nil)
		if err != nil {
			return false, err
		}
		resp, err := c.httpClient.Do(req)
		if retry, rerr := shouldRetry(resp, err); retry || rerr != nil {
			return retry, rerr
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return false, errs.Transport("GET %s: HTTP %d", p, resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return false, err
	})
	return body, err
}

// Put uploads data to p, optionally conditioned on ifMatch (an
// unquoted ETag). Returns the server's new ETag, quotes stripped.
func (c *Client) Put(ctx context.Context, p string, data []byte, ifMatch string) (string, error) {
	var etag string
	err := c.pacer.Call(func() (bool, error) {
		req, err := c.newRequest(ctx, http.MethodPut, p, bytes.NewReader(data))
		if err != nil {
			return false, err
		}
		req.ContentLength = int64(len(data))
		req.Header.Set("Content-Type", mime.TypeByExtension(path.Ext(p)))
		if ifMatch != "" {
			req.Header.Set("If-Match", `"`+ifMatch+`"`)
		}
		resp, err := c.httpClient.Do(req)
		if retry, rerr := shouldRetry(resp, err); retry || rerr != nil {
			return retry, rerr
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusPreconditionFailed {
			return false, errs.Conflict("PUT %s: If-Match %q rejected", p, ifMatch)
		}
		if resp.StatusCode/100 != 2 {
			return false, errs.Transport("PUT %s: HTTP %d", p, resp.StatusCode)
		}
		etag = strings.Trim(resp.Header.Get("ETag"), `"`)
		return false, nil
	})
	return etag, err
}

// Delete removes p. A 404 counts as success.
func (c *Client) Delete(ctx context.Context, p string) error {
	return c.pacer.Call(func() (bool, error) {
		req, err := c.newRequest(ctx, http.MethodDelete, p, nil)
		if err != nil {
			return false, err
		}
		resp, err := c.httpClient.Do(req)
		if retry, rerr := shouldRetry(resp, err); retry || rerr != nil {
			return retry, rerr
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 == 2 || resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, errs.Transport("DELETE %s: HTTP %d", p, resp.StatusCode)
	})
}

// Move renames/moves from to to via the MOVE verb, overwriting any
// existing destination.
func (c *Client) Move(ctx context.Context, from, to string) error {
	return c.pacer.Call(func() (bool, error) {
		req, err := c.newRequest(ctx, "MOVE", from, nil)
		if err != nil {
			return false, err
		}
		req.Header.Set("Destination", c.resolve(to))
		req.Header.Set("Overwrite", "T")
		resp, err := c.httpClient.Do(req)
		if retry, rerr := shouldRetry(resp, err); retry || rerr != nil {
			return retry, rerr
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return false, errs.Transport("MOVE %s->%s: HTTP %d", from, to, resp.StatusCode)
		}
		return false, nil
	})
}

// Mkdir creates a collection at p. A 405 (already exists) counts as
// success.
func (c *Client) Mkdir(ctx context.Context, p string) error {
	return c.pacer.Call(func() (bool, error) {
		req, err := c.newRequest(ctx, "MKCOL", p, nil)
		if err != nil {
			return false, err
		}
		resp, err := c.httpClient.Do(req)
		if retry, rerr := shouldRetry(resp, err); retry || rerr != nil {
			return retry, rerr
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 == 2 || resp.StatusCode == http.StatusMethodNotAllowed {
			return false, nil
		}
		return false, errs.Transport("MKCOL %s: HTTP %d", p, resp.StatusCode)
	})
}
