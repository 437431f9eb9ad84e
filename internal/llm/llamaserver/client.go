// Package llamaserver streams completions from a llama.cpp HTTP server.
// It implements llm.TokenStreamer; everything model-internal (context
// window, sampling, truncation of over-long prompts) terminates here.
package llamaserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/healthmetrics/extractor/internal/llm"
)

type Client struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

var _ llm.TokenStreamer = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger,
	}
}

// truncateInput cuts text at max bytes, backing off to a rune boundary so
// the prompt stays valid UTF-8.
func truncateInput(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max] + "... [TRUNCATED]"
}

// completionChunk is one server-sent event payload from /completion.
type completionChunk struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
}

// Stream sends one chunk of report text and forwards generated tokens to
// emit in order. An emit error (broken downstream sink) cancels the request
// body read, which terminates generation on the server side.
func (c *Client) Stream(ctx context.Context, text string, emit func(token string) error) error {
	rid := uuid.New().String()
	start := time.Now()

	if len(text) > c.cfg.MaxInputChars {
		c.log.Warn("llm.stream.truncating_input",
			"req_id", rid,
			"text_len", len(text),
			"max_input_chars", c.cfg.MaxInputChars,
		)
		text = truncateInput(text, c.cfg.MaxInputChars)
	}

	body := map[string]any{
		"prompt":      llm.BuildExtractionPrompt(text),
		"n_predict":   c.cfg.MaxOutputToken,
		"temperature": c.cfg.Temperature,
		"stop":        []string{"</s>"},
		"stream":      true,
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode completion request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/completion"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.log.Info("llm.stream.start",
		"req_id", rid,
		"url", endpoint,
		"text_len", len(text),
		"n_predict", c.cfg.MaxOutputToken,
	)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("llm.stream.send_error", "req_id", rid, "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.log.Error("llm.stream.non_2xx", "req_id", rid, "status", resp.StatusCode)
		return fmt.Errorf("llama server status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	tokens := 0
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		// SSE framing: "data: {...}".
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var chunk completionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.log.Warn("llm.stream.bad_event", "req_id", rid, "error", err)
			continue
		}
		if chunk.Content != "" {
			tokens++
			if err := emit(chunk.Content); err != nil {
				c.log.Warn("llm.stream.sink_closed",
					"req_id", rid,
					"tokens", tokens,
					"elapsed_ms", time.Since(start).Milliseconds(),
					"error", err,
				)
				return err
			}
		}
		if chunk.Stop {
			break
		}
	}
	if err := sc.Err(); err != nil {
		c.log.Error("llm.stream.read_error", "req_id", rid, "tokens", tokens, "error", err)
		return err
	}

	c.log.Info("llm.stream.done",
		"req_id", rid,
		"tokens", tokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
