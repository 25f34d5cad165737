package sunokit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/igolaizola/sunokit/pkg/account"
	"github.com/igolaizola/sunokit/pkg/fhttp"
	"github.com/igolaizola/sunokit/pkg/logging"
	"github.com/igolaizola/sunokit/pkg/sound"
	"github.com/igolaizola/sunokit/pkg/storage"
	"github.com/igolaizola/sunokit/pkg/suno"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

type Config struct {
	Debug     bool
	LogFormat string

	Accounts string
	Account  string
	Model    string

	Proxy       string
	TLSClient   bool
	Concurrency int
	Timeout     time.Duration

	DBType     string
	DBConn     string
	CookieFile string
}

type app struct {
	client  *suno.Client
	store   *storage.Store
	logger  zerolog.Logger
	service *account.Service
}

func start(ctx context.Context, cfg *Config) (*app, error) {
	logger := logging.New(logging.Config{
		Debug:  cfg.Debug,
		Format: cfg.LogFormat,
	})

	if cfg.Accounts == "" {
		return nil, errors.New("accounts file is required")
	}
	accounts, err := account.Load(cfg.Accounts)
	if err != nil {
		return nil, err
	}
	service, err := accounts.Pick(cfg.Model, cfg.Account, nil)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{}
	switch {
	case cfg.TLSClient:
		transport, err := fhttp.NewTransport(cfg.Timeout, cfg.Proxy)
		if err != nil {
			return nil, err
		}
		httpClient.Transport = transport
	case cfg.Proxy != "":
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}

	var store *storage.Store
	if cfg.DBType != "" {
		store, err = storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("couldn't create orm store: %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return nil, fmt.Errorf("couldn't start orm store: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	cookieStore := newCookieStore(cfg, store, service)

	client := suno.New(&suno.Config{
		Account:     service.Name,
		Cookie:      cookieOrEmpty(cookieStore, service.Cookie),
		CookieStore: cookieStore,
		Client:      httpClient,
		Logger:      &logger,
		BaseURL:     service.APIBase,
		Relays:      accounts.Relays,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
	})
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("couldn't start suno client: %w", err)
	}
	logger.Debug().Str("account", service.Name).Int("relays", len(accounts.Relays)).Bool("cookie_store", cookieStore != nil).Msg("sunokit: client ready")
	return &app{
		client:  client,
		store:   store,
		logger:  logger,
		service: service,
	}, nil
}

// newCookieStore returns where the account cookie is persisted: the
// database if there is one, otherwise the cookie file if set.
func newCookieStore(cfg *Config, store *storage.Store, service *account.Service) suno.CookieStore {
	switch {
	case store != nil:
		return store.NewCookieStore(service.Name, service.Cookie)
	case cfg.CookieFile != "":
		return suno.NewCookieStore(cfg.CookieFile, service.Cookie)
	default:
		return nil
	}
}

// cookieOrEmpty leaves the cookie to the store when there is one, so that
// refreshed cookies saved by previous runs take precedence.
func cookieOrEmpty(store suno.CookieStore, cookie string) string {
	if store != nil {
		return ""
	}
	return cookie
}

func (a *app) stop(ctx context.Context) {
	if err := a.client.Stop(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("sunokit: couldn't stop suno client")
	}
}

func (a *app) record(ctx context.Context, op string, s *suno.Submission, prompt, tags, title string, instrumental bool) {
	if a.store == nil {
		return
	}
	job := &storage.Job{
		ID:           ulid.Make().String(),
		Account:      s.Account,
		Operation:    op,
		Relay:        s.Relay,
		Prompt:       prompt,
		Tags:         tags,
		Title:        title,
		Instrumental: instrumental,
		ClipIDs:      strings.Join(s.IDs, ","),
	}
	if err := a.store.SetJob(ctx, job); err != nil {
		a.logger.Error().Err(err).Msg("sunokit: couldn't save job")
	}
}

// Generate submits a song generated from a description.
func Generate(ctx context.Context, cfg *Config, prompt string, instrumental bool) error {
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.stop(ctx)

	s, err := a.client.Generate(ctx, prompt, instrumental)
	if err != nil {
		return err
	}
	a.record(ctx, "generate", s, prompt, "", "", instrumental)
	printSubmission(s)
	return nil
}

// CustomGenerate submits a song with explicit lyrics, tags and title.
func CustomGenerate(ctx context.Context, cfg *Config, prompt, tags, title string, instrumental bool) error {
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.stop(ctx)

	s, err := a.client.CustomGenerate(ctx, prompt, tags, title, instrumental)
	if err != nil {
		return err
	}
	a.record(ctx, "custom", s, prompt, tags, title, instrumental)
	printSubmission(s)
	return nil
}

// Item is a batch entry. Items with tags or title are sent in custom mode.
type Item struct {
	Prompt       string `json:"prompt" csv:"prompt"`
	Tags         string `json:"tags" csv:"tags"`
	Title        string `json:"title" csv:"title"`
	Instrumental bool   `json:"instrumental" csv:"instrumental"`
}

func (i *Item) custom() bool {
	return i.Tags != "" || i.Title != ""
}

// Batch submits one generation per input item. All items are submitted at
// once and the client queue limits how many run at the same time.
func Batch(ctx context.Context, cfg *Config, input string, instrumental bool) error {
	items, err := readItems(input, instrumental)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no items in %s", input)
	}
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.stop(ctx)

	begin := time.Now()
	var wg sync.WaitGroup
	var lck sync.Mutex
	var errs []error
	for i, item := range items {
		wg.Add(1)
		go func(i int, item *Item) {
			defer wg.Done()
			var s *suno.Submission
			var err error
			op := "batch"
			if item.custom() {
				op = "batch custom"
				s, err = a.client.CustomGenerate(ctx, item.Prompt, item.Tags, item.Title, item.Instrumental)
			} else {
				s, err = a.client.Generate(ctx, item.Prompt, item.Instrumental)
			}
			if err != nil {
				a.logger.Error().Err(err).Int("item", i+1).Msg("sunokit: batch generation failed")
				lck.Lock()
				errs = append(errs, fmt.Errorf("item %d: %w", i+1, err))
				lck.Unlock()
				return
			}
			a.record(ctx, op, s, item.Prompt, item.Tags, item.Title, item.Instrumental)
			a.logger.Info().Int("item", i+1).Strs("ids", s.IDs).Msg("sunokit: submitted")
		}(i, item)
	}
	wg.Wait()
	a.logger.Info().Int("items", len(items)).Int("errors", len(errs)).Dur("elapsed", time.Since(begin)).Msg("sunokit: batch ended")
	return errors.Join(errs...)
}

// readItems reads batch items from a csv or json file. Any other file is
// read as plain text with one description per line.
func readItems(path string, instrumental bool) ([]*Item, error) {
	var items []*Item
	switch filepath.Ext(path) {
	case ".json":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't read %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("couldn't unmarshal items: %w", err)
		}
	case ".csv":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't read %s: %w", path, err)
		}
		if err := gocsv.UnmarshalBytes(b, &items); err != nil {
			return nil, fmt.Errorf("couldn't unmarshal items: %w", err)
		}
	default:
		lines, err := readLines(path)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			items = append(items, &Item{Prompt: l, Instrumental: instrumental})
		}
		return items, nil
	}
	for i, item := range items {
		if item.Prompt == "" && !(item.custom() && item.Instrumental) {
			return nil, fmt.Errorf("item %d has no prompt", i+1)
		}
	}
	return items, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %w", path, err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("couldn't read %s: %w", path, err)
	}
	return lines, nil
}

// GenerateLyrics submits a lyrics job and prints its id.
func GenerateLyrics(ctx context.Context, cfg *Config, prompt string) error {
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.stop(ctx)

	id, err := a.client.GenerateLyrics(ctx, prompt)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

// Lyrics prints a lyrics job.
func Lyrics(ctx context.Context, cfg *Config, id string) error {
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.stop(ctx)

	l, err := a.client.Lyrics(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println("status:", l.Status)
	if l.Title != "" {
		fmt.Println("title:", l.Title)
	}
	fmt.Println(l.Text)
	return nil
}

// Songs prints the clips with the given ids. If no ids are given, the
// clips of the pending jobs in the database are used and jobs whose clips
// are ready are marked as done.
func Songs(ctx context.Context, cfg *Config, ids []string) error {
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.stop(ctx)

	if len(ids) > 0 {
		clips, err := a.client.Feed(ctx, ids)
		if err != nil {
			return err
		}
		printClips(clips)
		return nil
	}
	if a.store == nil {
		return errors.New("ids or a database are required")
	}
	jobs, err := a.store.ListJobs(ctx, 1, 100, "created_at asc",
		storage.Where("account = ?", a.service.Name),
		storage.Where("done = ?", false),
	)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		clips, err := a.client.Songs(ctx, job.Clips())
		if err != nil {
			return err
		}
		if clips == nil {
			a.logger.Info().Str("job", job.ID).Msg("sunokit: job not ready")
			continue
		}
		printClips(clips)
		job.Done = true
		if err := a.store.SetJob(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// Credits prints the credits left in the account.
func Credits(ctx context.Context, cfg *Config) error {
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.stop(ctx)

	credits, err := a.client.Credits(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d credits left\n", a.service.Name, credits)
	return nil
}

// Jobs prints the jobs stored in the database.
func Jobs(ctx context.Context, dbType, dbConn string, page, size int) error {
	store, err := storage.New(dbType, dbConn, false)
	if err != nil {
		return err
	}
	if err := store.Start(ctx); err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	jobs, err := store.ListJobs(ctx, page, size, "created_at desc")
	if err != nil {
		return err
	}
	for _, j := range jobs {
		state := "pending"
		if j.Done {
			state = "done"
		}
		fmt.Printf("%s %s %s %s [%s] %q\n", j.CreatedAt.Format(time.RFC3339), j.Account, j.Operation, state, j.ClipIDs, j.Prompt)
	}
	return nil
}

// Download saves the audio of ready clips to the output folder.
func Download(ctx context.Context, cfg *Config, ids []string, output string) error {
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.stop(ctx)

	clips, err := a.client.Songs(ctx, ids)
	if err != nil {
		return err
	}
	if clips == nil {
		return errors.New("clips are not ready yet")
	}
	if output == "" {
		output = "."
	}
	if err := os.MkdirAll(output, 0755); err != nil {
		return fmt.Errorf("couldn't create output folder: %w", err)
	}
	client := &http.Client{Timeout: 2 * time.Minute}
	for _, c := range clips {
		if c.AudioURL == "" {
			return fmt.Errorf("clip %s has no audio url", c.ID)
		}
		path := filepath.Join(output, fmt.Sprintf("%s.mp3", c.ID))
		if err := download(ctx, client, c.AudioURL, path); err != nil {
			return err
		}
		ev := a.logger.Info().Str("id", c.ID).Str("path", path)
		if info, err := sound.ProbeFile(path); err != nil {
			a.logger.Warn().Err(err).Str("id", c.ID).Msg("sunokit: downloaded audio isn't a valid mp3")
		} else {
			ev = ev.Dur("duration", info.Duration)
		}
		ev.Msg("sunokit: downloaded")
	}
	return nil
}

func download(ctx context.Context, client *http.Client, rawURL, output string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("couldn't create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("couldn't download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("couldn't download audio: status %d", resp.StatusCode)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("couldn't create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(output)
		return fmt.Errorf("couldn't write to file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("couldn't close file: %w", err)
	}
	return nil
}

func printSubmission(s *suno.Submission) {
	via := s.Relay
	if via == "" {
		via = "origin"
	}
	fmt.Printf("account: %s (via %s)\n", s.Account, via)
	for _, id := range s.IDs {
		fmt.Println("id:", id)
	}
}

func printClips(clips []suno.Clip) {
	for _, c := range clips {
		fmt.Println("id:", c.ID)
		fmt.Println("status:", c.Status)
		if c.Title != "" {
			fmt.Println("title:", c.Title)
		}
		if c.AudioURL != "" {
			fmt.Println("url:", c.AudioURL)
		}
		if c.Metadata.Tags != "" {
			fmt.Println("tags:", c.Metadata.Tags)
		}
		if c.Credits > 0 {
			fmt.Println("credits:", c.Credits)
		}
	}
}
