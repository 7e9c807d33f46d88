package xapi

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/models"
	"github.com/gamepop/fin-x-watcher/pkg/scoring"
)

// StreamedPost is one filtered-stream delivery: the post plus the tags of the
// rules that matched it.
type StreamedPost struct {
	Post models.Post
	Tags []string
}

// StreamReader reads posts from an open filtered-stream connection.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newStreamReader(body io.ReadCloser) *StreamReader {
	scanner := bufio.NewScanner(body)
	// Stream payloads with expansions can exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &StreamReader{body: body, scanner: scanner}
}

type streamEnvelope struct {
	Data     apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	MatchingRules []struct {
		ID  string `json:"id"`
		Tag string `json:"tag"`
	} `json:"matching_rules"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Next blocks until the stream delivers the next matched post. Keep-alive
// blank lines are skipped. A closed or broken connection surfaces as an
// UnavailableError so the caller's reconnect policy engages.
func (r *StreamReader) Next() (StreamedPost, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		var env streamEnvelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			continue
		}
		if env.Data.ID == "" {
			continue
		}

		var author apiUser
		for _, u := range env.Includes.Users {
			if u.ID == env.Data.AuthorID {
				author = u
				break
			}
		}

		tags := make([]string, 0, len(env.MatchingRules))
		for _, m := range env.MatchingRules {
			tags = append(tags, m.Tag)
		}

		return StreamedPost{
			Post: scoring.Score(env.Data.toPost(author)),
			Tags: tags,
		}, nil
	}

	err := r.scanner.Err()
	if err == nil {
		err = io.EOF
	}
	return StreamedPost{}, &clients.UnavailableError{Cause: err}
}

// Close terminates the stream connection.
func (r *StreamReader) Close() error {
	return r.body.Close()
}
