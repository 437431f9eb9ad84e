// Package stream assembles a model's token stream into parsed candidate
// records. The model emits one minified JSON object per line; tokens arrive
// in arbitrary fragments, so lines are rebuilt incrementally and each
// completed line is parsed on the spot. Lines that are not JSON objects are
// passed through untouched, so diagnostics are never silently discarded and
// never mistaken for data.
package stream

import (
	"encoding/json"
	"strings"

	"github.com/healthmetrics/extractor/internal/entity"
)

// State of the line assembler. The transitions are newline-driven:
// Accumulating -> LineReady on '\n', LineReady -> Accumulating once the
// line is consumed, anything -> StreamEnded on Flush.
type State int

const (
	StateAccumulating State = iota
	StateLineReady
	StateStreamEnded
)

// EventKind discriminates parser output.
type EventKind int

const (
	// EventCandidate carries one parsed RawCandidate.
	EventCandidate EventKind = iota
	// EventPassthrough carries a non-JSON line verbatim.
	EventPassthrough
)

type Event struct {
	Kind      EventKind
	Candidate entity.RawCandidate
	Line      string
}

// Parser is the incremental JSON-lines assembler for one chunk's stream.
// Not safe for concurrent use; each extraction owns its parser.
type Parser struct {
	buf   strings.Builder
	state State
}

func NewParser() *Parser {
	return &Parser{state: StateAccumulating}
}

func (p *Parser) State() State {
	return p.state
}

// Feed appends one token fragment and returns the events for every line the
// fragment completed, in emission order.
func (p *Parser) Feed(token string) []Event {
	if p.state == StateStreamEnded {
		return nil
	}

	p.buf.WriteString(token)
	if !strings.Contains(token, "\n") {
		return nil
	}

	var events []Event
	rest := p.buf.String()
	for {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		p.state = StateLineReady
		if ev, ok := parseLine(rest[:i]); ok {
			events = append(events, ev)
		}
		rest = rest[i+1:]
		p.state = StateAccumulating
	}
	p.buf.Reset()
	p.buf.WriteString(rest)
	return events
}

// Flush handles end-of-stream: the remaining partial buffer gets one final
// parse attempt under the same success/failure rule. After Flush the parser
// accepts no more input.
func (p *Parser) Flush() []Event {
	if p.state == StateStreamEnded {
		return nil
	}
	p.state = StateStreamEnded

	if ev, ok := parseLine(p.buf.String()); ok {
		p.buf.Reset()
		return []Event{ev}
	}
	p.buf.Reset()
	return nil
}

// parseLine trims one assembled line and tries to read it as a single JSON
// object. ok is false only for blank lines; any non-blank line produces
// either a candidate or a pass-through event.
func parseLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	var cand entity.RawCandidate
	if strings.HasPrefix(line, "{") && json.Unmarshal([]byte(line), &cand) == nil {
		return Event{Kind: EventCandidate, Candidate: cand}, true
	}
	return Event{Kind: EventPassthrough, Line: line}, true
}
