package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/apikeys"
	"github.com/keygate/keygate/internal/github"
	"github.com/keygate/keygate/internal/summarize"
)

type fakeAdmitter struct {
	err   error
	usage apikeys.Usage
	token string
}

func (f *fakeAdmitter) Admit(_ context.Context, token string) (*apikeys.Usage, error) {
	f.token = token
	if f.err != nil {
		return nil, f.err
	}
	return &f.usage, nil
}

type fakeReadmeFetcher struct {
	readme string
	err    error
	repo   string
}

func (f *fakeReadmeFetcher) FetchReadme(_ context.Context, repo string) (string, error) {
	f.repo = repo
	return f.readme, f.err
}

type fakeSummarizer struct {
	summary *summarize.Summary
	err     error
}

func (f *fakeSummarizer) SummarizeReadme(_ context.Context, _, _ string) (*summarize.Summary, error) {
	return f.summary, f.err
}

func summarizeRequestWith(t *testing.T, body interface{}, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/github-summarizer", &buf)
	if token != "" {
		req.Header.Set("x-api-key", token)
	}
	return req
}

func TestSummarizeHandler(t *testing.T) {
	okSummary := &summarize.Summary{
		Summary:   "A Go web framework.",
		CoolFacts: []string{"fast", "minimal"},
	}

	t.Run("returns the summary when admitted", func(t *testing.T) {
		gate := &fakeAdmitter{usage: apikeys.Usage{UsageCount: 1}}
		fetcher := &fakeReadmeFetcher{readme: "# gin"}
		h := NewSummarizeHandler(gate, fetcher, &fakeSummarizer{summary: okSummary})

		rr := httptest.NewRecorder()
		h.Summarize(rr, summarizeRequestWith(t, map[string]string{"githubUrl": "https://github.com/gin-gonic/gin"}, "sk_ok"))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "sk_ok", gate.token)
		assert.Equal(t, "https://github.com/gin-gonic/gin", fetcher.repo)

		var got summarize.Summary
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, *okSummary, got)
	})

	t.Run("accepts repoUrl and repo aliases", func(t *testing.T) {
		for _, field := range []string{"repoUrl", "repo"} {
			fetcher := &fakeReadmeFetcher{readme: "# x"}
			h := NewSummarizeHandler(&fakeAdmitter{}, fetcher, &fakeSummarizer{summary: okSummary})

			rr := httptest.NewRecorder()
			h.Summarize(rr, summarizeRequestWith(t, map[string]string{field: "owner/repo"}, "sk_ok"))

			assert.Equal(t, http.StatusOK, rr.Code, field)
			assert.Equal(t, "owner/repo", fetcher.repo, field)
		}
	})

	t.Run("admission errors map to status codes", func(t *testing.T) {
		cases := []struct {
			name string
			err  error
			want int
		}{
			{"missing credential", apikeys.ErrMissingCredential, http.StatusUnauthorized},
			{"invalid credential", apikeys.ErrInvalidCredential, http.StatusUnauthorized},
			{"revoked credential", apikeys.ErrRevokedCredential, http.StatusUnauthorized},
			{"quota exceeded", &apikeys.QuotaError{Usage: 5, Limit: 5}, http.StatusTooManyRequests},
			{"backend unavailable", apikeys.ErrBackendUnavailable, http.StatusInternalServerError},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				h := NewSummarizeHandler(&fakeAdmitter{err: tc.err}, &fakeReadmeFetcher{}, &fakeSummarizer{})

				rr := httptest.NewRecorder()
				h.Summarize(rr, summarizeRequestWith(t, map[string]string{"repo": "owner/repo"}, "sk_x"))

				assert.Equal(t, tc.want, rr.Code)
			})
		}
	})

	t.Run("quota response carries usage and limit", func(t *testing.T) {
		h := NewSummarizeHandler(&fakeAdmitter{err: &apikeys.QuotaError{Usage: 7, Limit: 5}}, &fakeReadmeFetcher{}, &fakeSummarizer{})

		rr := httptest.NewRecorder()
		h.Summarize(rr, summarizeRequestWith(t, map[string]string{"repo": "owner/repo"}, "sk_x"))

		require.Equal(t, http.StatusTooManyRequests, rr.Code)

		var resp struct {
			Usage int64 `json:"usage"`
			Limit int64 `json:"limit"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, int64(7), resp.Usage)
		assert.Equal(t, int64(5), resp.Limit)
	})

	t.Run("missing repository reference is 400", func(t *testing.T) {
		h := NewSummarizeHandler(&fakeAdmitter{}, &fakeReadmeFetcher{}, &fakeSummarizer{})

		rr := httptest.NewRecorder()
		h.Summarize(rr, summarizeRequestWith(t, map[string]string{}, "sk_ok"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing readme is 404", func(t *testing.T) {
		h := NewSummarizeHandler(&fakeAdmitter{}, &fakeReadmeFetcher{err: github.ErrReadmeNotFound}, &fakeSummarizer{})

		rr := httptest.NewRecorder()
		h.Summarize(rr, summarizeRequestWith(t, map[string]string{"repo": "owner/repo"}, "sk_ok"))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("fetch failure is 502", func(t *testing.T) {
		h := NewSummarizeHandler(&fakeAdmitter{}, &fakeReadmeFetcher{err: errors.New("github is down")}, &fakeSummarizer{})

		rr := httptest.NewRecorder()
		h.Summarize(rr, summarizeRequestWith(t, map[string]string{"repo": "owner/repo"}, "sk_ok"))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("summarization failure is 502", func(t *testing.T) {
		h := NewSummarizeHandler(&fakeAdmitter{}, &fakeReadmeFetcher{readme: "# x"}, &fakeSummarizer{err: errors.New("provider timeout")})

		rr := httptest.NewRecorder()
		h.Summarize(rr, summarizeRequestWith(t, map[string]string{"repo": "owner/repo"}, "sk_ok"))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("quota is checked before the body is read", func(t *testing.T) {
		h := NewSummarizeHandler(&fakeAdmitter{err: &apikeys.QuotaError{Usage: 5, Limit: 5}}, &fakeReadmeFetcher{}, &fakeSummarizer{})

		req := httptest.NewRequest(http.MethodPost, "/github-summarizer", bytes.NewBufferString("{not json"))
		req.Header.Set("x-api-key", "sk_x")
		rr := httptest.NewRecorder()
		h.Summarize(rr, req)

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})
}
