package sunokit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igolaizola/sunokit/pkg/account"
	"github.com/igolaizola/sunokit/pkg/storage"
	"github.com/oklog/ulid/v2"
)

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.txt")
	content := "# prompts\nrainy day\n\n  sunny morning  \n#skip\nnight drive"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := readLines(path)
	if err != nil {
		t.Fatalf("readLines() err = %v; want nil", err)
	}
	want := []string{"rainy day", "sunny morning", "night drive"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("readLines() = %q; want %q", got, want)
	}
	if _, err := readLines(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("readLines() err = nil; want error")
	}
}

func TestReadItems(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"items.csv":  "prompt,tags,title,instrumental\nrainy day,,,false\nverse one,lofi,Rain,false\n,ambient,Calm,true\n",
		"items.json": `[{"prompt":"rainy day"},{"prompt":"verse one","tags":"lofi","title":"Rain"},{"tags":"ambient","title":"Calm","instrumental":true}]`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			items, err := readItems(path, false)
			if err != nil {
				t.Fatalf("readItems() err = %v; want nil", err)
			}
			if len(items) != 3 {
				t.Fatalf("len(items) = %d; want 3", len(items))
			}
			if items[0].custom() {
				t.Errorf("items[0].custom() = true; want false")
			}
			if !items[1].custom() || items[1].Tags != "lofi" || items[1].Title != "Rain" {
				t.Errorf("items[1] = %+v; want custom lofi item", items[1])
			}
			if !items[2].Instrumental {
				t.Errorf("items[2].Instrumental = false; want true")
			}
		})
	}

	t.Run("text", func(t *testing.T) {
		path := filepath.Join(dir, "items.txt")
		if err := os.WriteFile(path, []byte("one\ntwo\n"), 0644); err != nil {
			t.Fatal(err)
		}
		items, err := readItems(path, true)
		if err != nil {
			t.Fatalf("readItems() err = %v; want nil", err)
		}
		if len(items) != 2 || !items[0].Instrumental || items[1].Prompt != "two" {
			t.Fatalf("readItems() = %+v; want two instrumental items", items)
		}
	})

	t.Run("missing prompt", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte(`[{"tags":"lofi"}]`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := readItems(path, false); err == nil {
			t.Fatal("readItems() err = nil; want error")
		}
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/c1.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "c1.mp3")
	if err := download(context.Background(), srv.Client(), srv.URL+"/c1.mp3", out); err != nil {
		t.Fatalf("download() err = %v; want nil", err)
	}
	b, err := os.ReadFile(out)
	if err != nil || string(b) != "ID3audio" {
		t.Fatalf("file = %q, %v; want ID3audio", b, err)
	}
	if err := download(context.Background(), srv.Client(), srv.URL+"/missing.mp3", filepath.Join(dir, "x.mp3")); err == nil {
		t.Fatal("download() err = nil; want status error")
	}
}

func TestDownloadTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nID3au")
		_ = buf.Flush()
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "c1.mp3")
	if err := download(context.Background(), srv.Client(), srv.URL+"/c1.mp3", out); err == nil {
		t.Fatal("download() err = nil; want error")
	}
	if _, err := os.Stat(out); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Stat() err = %v; want %v", err, fs.ErrNotExist)
	}
}

func TestNewCookieStore(t *testing.T) {
	ctx := context.Background()
	service := &account.Service{Name: "main", Cookie: "__client=configured"}

	if got := newCookieStore(&Config{}, nil, service); got != nil {
		t.Fatalf("newCookieStore() = %v; want nil", got)
	}

	path := filepath.Join(t.TempDir(), "cookie.txt")
	cs := newCookieStore(&Config{CookieFile: path}, nil, service)
	if cs == nil {
		t.Fatal("newCookieStore() = nil; want file store")
	}
	if got, err := cs.GetCookie(ctx); err != nil || got != "__client=configured" {
		t.Fatalf("GetCookie() = %q, %v; want fallback", got, err)
	}
	if err := cs.SetCookie(ctx, "__client=refreshed"); err != nil {
		t.Fatal(err)
	}
	if b, err := os.ReadFile(path); err != nil || strings.TrimSpace(string(b)) != "__client=refreshed" {
		t.Fatalf("cookie file = %q, %v; want __client=refreshed", b, err)
	}

	// The database takes precedence over the file.
	store, err := storage.New("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", ulid.Make().String()), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	cs = newCookieStore(&Config{CookieFile: path}, store, service)
	if got, err := cs.GetCookie(ctx); err != nil || got != "__client=configured" {
		t.Fatalf("GetCookie() = %q, %v; want database fallback", got, err)
	}

	if got := cookieOrEmpty(cs, service.Cookie); got != "" {
		t.Fatalf("cookieOrEmpty() = %q; want empty", got)
	}
	if got := cookieOrEmpty(nil, service.Cookie); got != service.Cookie {
		t.Fatalf("cookieOrEmpty() = %q; want %q", got, service.Cookie)
	}
}

func TestStartRequiresAccounts(t *testing.T) {
	if _, err := start(context.Background(), &Config{}); err == nil {
		t.Fatal("start() err = nil; want error")
	}
}
