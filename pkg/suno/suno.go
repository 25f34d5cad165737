package suno

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/igolaizola/sunokit/pkg/queue"
)

const model = "chirp-v3-5"

type generateRequest struct {
	MV                   string `json:"mv"`
	Prompt               string `json:"prompt"`
	GPTDescriptionPrompt string `json:"gpt_description_prompt,omitempty"`
	Tags                 string `json:"tags,omitempty"`
	Title                string `json:"title,omitempty"`
	MakeInstrumental     bool   `json:"make_instrumental"`
}

type generateResponse struct {
	ID    string `json:"id"`
	Clips []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"clips"`
	Status string `json:"status"`
}

// Submission is the result of a generation request.
type Submission struct {
	Account string
	// Relay is the id of the relay used, empty when sent to the origin.
	Relay string
	IDs   []string
}

// Clip is a generated song as returned by the feed.
type Clip struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	AudioURL  string   `json:"audio_url"`
	ImageURL  string   `json:"image_url"`
	VideoURL  string   `json:"video_url"`
	CreatedAt string   `json:"created_at"`
	ModelName string   `json:"model_name"`
	Metadata  Metadata `json:"metadata"`

	// Credits left in the account, only set by Songs.
	Credits int `json:"-"`
}

type Metadata struct {
	Prompt               string `json:"prompt"`
	GPTDescriptionPrompt string `json:"gpt_description_prompt"`
	Tags                 string `json:"tags"`
	Type                 string `json:"type"`
	Duration             string `json:"duration_formatted"`
}

// Done reports whether the clip audio can be consumed.
func (c *Clip) Done() bool {
	return c.Status == "streaming" || c.Status == "complete"
}

// Generate submits a song generated from a description.
func (c *Client) Generate(ctx context.Context, prompt string, instrumental bool) (*Submission, error) {
	return c.submit(ctx, "generate", &generateRequest{
		MV:                   model,
		GPTDescriptionPrompt: prompt,
		MakeInstrumental:     instrumental,
	})
}

// CustomGenerate submits a song with explicit lyrics, tags and title.
// Instrumental songs are sent without lyrics.
func (c *Client) CustomGenerate(ctx context.Context, prompt, tags, title string, instrumental bool) (*Submission, error) {
	req := &generateRequest{
		MV:               model,
		Prompt:           prompt,
		Tags:             tags,
		Title:            title,
		MakeInstrumental: instrumental,
	}
	if instrumental {
		req.Prompt = ""
	}
	return c.submit(ctx, "custom generate", req)
}

// submit sends a generation request through the admission queue.
func (c *Client) submit(ctx context.Context, op string, in *generateRequest) (*Submission, error) {
	if _, err := c.ensureFresh(ctx); err != nil {
		return nil, fail(op, ErrTokenRenewal, err)
	}
	rel := c.relays.Select()

	ids, err := queue.Do(ctx, c.queue, func(ctx context.Context) ([]string, error) {
		// The task may have waited long enough for the token to go stale.
		if _, err := c.ensureFresh(ctx); err != nil {
			return nil, fail(op, ErrTokenRenewal, err)
		}
		var resp generateResponse
		if err := c.do(ctx, &request{
			op:     op,
			method: "POST",
			url:    c.studioURL(rel, "generate/v2/"),
			in:     in,
			out:    &resp,
			relay:  rel,
			bearer: true,
			shape:  ErrQueueTask,
		}); err != nil {
			return nil, err
		}
		if len(resp.Clips) == 0 {
			return nil, fail(op, ErrQueueTask, errors.New("response has no clips"))
		}
		var ids []string
		for i, clip := range resp.Clips {
			if clip.ID == "" {
				return nil, fail(op, ErrQueueTask, fmt.Errorf("clip %d has no id", i))
			}
			ids = append(ids, clip.ID)
		}
		return ids, nil
	})
	if err != nil {
		if errors.Is(err, queue.ErrPanic) {
			return nil, fail(op, ErrQueueTask, err)
		}
		return nil, classify(op, err)
	}
	s := &Submission{Account: c.account, IDs: ids}
	if rel != nil {
		s.Relay = rel.ID
	}
	c.logger.Debug().Str("op", op).Strs("ids", ids).Str("relay", s.Relay).Msg("suno: submitted")
	return s, nil
}

type lyricsRequest struct {
	Prompt string `json:"prompt"`
}

type lyricsResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

// Lyrics is a lyrics generation job.
type Lyrics struct {
	ID     string
	Status string
	Title  string
	Text   string
}

// GenerateLyrics submits a lyrics generation job and returns its id.
func (c *Client) GenerateLyrics(ctx context.Context, prompt string) (string, error) {
	op := "generate lyrics"
	var resp lyricsResponse
	if err := c.call(ctx, op, "POST", "generate/lyrics/", &lyricsRequest{Prompt: prompt}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fail(op, ErrResponse, errors.New("empty lyrics id"))
	}
	return resp.ID, nil
}

// Lyrics returns a lyrics job. Blank lines are removed from the text.
func (c *Client) Lyrics(ctx context.Context, id string) (*Lyrics, error) {
	var resp lyricsResponse
	if err := c.call(ctx, "lyrics", "GET", fmt.Sprintf("generate/lyrics/%s", url.PathEscape(id)), nil, &resp); err != nil {
		return nil, err
	}
	return &Lyrics{
		ID:     id,
		Status: resp.Status,
		Title:  resp.Title,
		Text:   cleanLyrics(resp.Text),
	}, nil
}

func cleanLyrics(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Feed returns the clips with the given ids.
func (c *Client) Feed(ctx context.Context, ids []string) ([]Clip, error) {
	path := "feed/"
	if len(ids) > 0 {
		escaped := make([]string, 0, len(ids))
		for _, id := range ids {
			escaped = append(escaped, url.QueryEscape(id))
		}
		path = fmt.Sprintf("%s?ids=%s", path, strings.Join(escaped, ","))
	}
	var clips []Clip
	if err := c.call(ctx, "feed", "GET", path, nil, &clips); err != nil {
		return nil, err
	}
	return clips, nil
}

type billingResponse struct {
	TotalCreditsLeft int `json:"total_credits_left"`
}

// Credits returns the credits left in the account.
func (c *Client) Credits(ctx context.Context) (int, error) {
	var resp billingResponse
	if err := c.call(ctx, "credits", "GET", "billing/info/", nil, &resp); err != nil {
		return 0, err
	}
	return resp.TotalCreditsLeft, nil
}

// Songs returns the clips once all of them can be consumed, with the
// remaining credits attached. It returns nil if any clip isn't ready.
func (c *Client) Songs(ctx context.Context, ids []string) ([]Clip, error) {
	clips, err := c.Feed(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range clips {
		if !clips[i].Done() {
			return nil, nil
		}
	}
	credits, err := c.Credits(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clips {
		clips[i].Credits = credits
	}
	return clips, nil
}

// call performs a studio api call outside the admission queue.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	if _, err := c.ensureFresh(ctx); err != nil {
		return fail(op, ErrTokenRenewal, err)
	}
	rel := c.relays.Select()
	return c.do(ctx, &request{
		op:     op,
		method: method,
		url:    c.studioURL(rel, path),
		in:     in,
		out:    out,
		relay:  rel,
		bearer: true,
	})
}
