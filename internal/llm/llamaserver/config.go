package llamaserver

import "time"

// Config drives the llama.cpp server client. The server hosts a single
// instruct model; concurrency control lives in llm.Gate, not here.
type Config struct {
	BaseURL        string        // e.g. http://localhost:8080
	Timeout        time.Duration // wall clock for one chunk's full generation
	MaxOutputToken int           // n_predict passed to the server
	Temperature    float32
	// MaxInputChars is the hard truncation boundary for one chunk of report
	// text. The chunker aims below this; a single oversized page can still
	// exceed it and is cut here, with a warning, never silently.
	MaxInputChars int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxOutputToken <= 0 {
		c.MaxOutputToken = 2000
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = 16000
	}
	return c
}
