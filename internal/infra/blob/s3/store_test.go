package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"openbis/internal/blob/core"
)

// fakeBucket answers the handful of S3 calls the store makes.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
	meta        http.Header
}

func respond(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header}
}

func (f *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2008-11-05T09:18:00Z</LastModified></Contents>", k, len(f.objects[k].body))
		}
		b.WriteString("</ListBucketResult>")
		return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}}), nil
	}
	obj, exists := f.objects[key]
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if decoded, ok := decodeChunked(body); ok {
			body = decoded
		}
		meta := http.Header{}
		for name, values := range req.Header {
			if strings.HasPrefix(strings.ToLower(name), "x-amz-meta-") {
				meta[name] = values
			}
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), meta: meta}
		return respond(http.StatusOK, "", http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodHead, http.MethodGet:
		if !exists {
			return respond(http.StatusNotFound, "", nil), nil
		}
		header := obj.meta.Clone()
		header.Set("Content-Length", strconv.Itoa(len(obj.body)))
		header.Set("Content-Type", obj.contentType)
		header.Set("ETag", `"etag"`)
		header.Set("Last-Modified", time.Date(2008, 11, 5, 9, 18, 0, 0, time.UTC).Format(http.TimeFormat))
		body := ""
		if req.Method == http.MethodGet {
			body = string(obj.body)
		}
		return respond(http.StatusOK, body, header), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, "", nil), nil
	}
	return respond(http.StatusNotImplemented, "", nil), nil
}

// decodeChunked unwraps a single aws-chunked frame.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n || !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeStore(t *testing.T, prefix string) (*Store, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string]fakeObject{}}
	store, err := New(context.Background(), Config{
		Bucket:          "openbis",
		Endpoint:        "https://s3.test",
		Prefix:          prefix,
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, func(o *s3.Options) { o.HTTPClient = &http.Client{Transport: bucket} })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, bucket
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, bucket := newFakeStore(t, "/blobs/")
	key := "attachments/experiment/e-1/protocol.pdf/1"
	info, err := store.Put(ctx, key, bytes.NewReader([]byte("protocol")), core.PutOptions{ContentType: "application/pdf"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != key || info.Size != 8 || info.ContentType != "application/pdf" || info.Checksum != "etag" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, ok := bucket.objects["blobs/"+key]; !ok {
		t.Fatalf("expected object below the prefix, have %v", bucket.objects)
	}
	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("again")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	_, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "protocol" {
		t.Fatalf("unexpected content %q", data)
	}

	list, err := store.List(ctx, "attachments/")
	if err != nil || len(list) != 1 || list[0].Key != key {
		t.Fatalf("unexpected listing %+v, %v", list, err)
	}

	url, err := store.PresignURL(ctx, key, core.SignedURLOptions{Expiry: time.Minute})
	if err != nil || !strings.Contains(url, "X-Amz-Expires=60") {
		t.Fatalf("unexpected presigned url %q, %v", url, err)
	}
	if _, err := store.PresignURL(ctx, key, core.SignedURLOptions{Method: http.MethodPut}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	if ok, err := store.Delete(ctx, key); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, key); ok || err != nil {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, err := store.Head(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket failure")
	}
}
