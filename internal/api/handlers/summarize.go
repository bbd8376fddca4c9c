package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keygate/keygate/internal/apikeys"
	"github.com/keygate/keygate/internal/github"
	"github.com/keygate/keygate/internal/summarize"
)

// Admitter is the quota gate protecting this endpoint.
type Admitter interface {
	Admit(ctx context.Context, token string) (*apikeys.Usage, error)
}

// ReadmeFetcher retrieves README content for a repository reference.
type ReadmeFetcher interface {
	FetchReadme(ctx context.Context, repo string) (string, error)
}

// Summarizer produces a structured summary from README content.
type Summarizer interface {
	SummarizeReadme(ctx context.Context, repo, readme string) (*summarize.Summary, error)
}

type SummarizeHandler struct {
	gate       Admitter
	readmes    ReadmeFetcher
	summarizer Summarizer
}

func NewSummarizeHandler(gate Admitter, readmes ReadmeFetcher, summarizer Summarizer) *SummarizeHandler {
	return &SummarizeHandler{gate: gate, readmes: readmes, summarizer: summarizer}
}

type summarizeRequest struct {
	GithubURL string `json:"githubUrl"`
	RepoURL   string `json:"repoUrl"`
	Repo      string `json:"repo"`
}

func (r summarizeRequest) repo() string {
	switch {
	case r.GithubURL != "":
		return r.GithubURL
	case r.RepoURL != "":
		return r.RepoURL
	default:
		return r.Repo
	}
}

func (h *SummarizeHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	usage, err := h.gate.Admit(r.Context(), apikeys.ExtractCredential(r))
	if err != nil {
		writeAdmitError(w, err)
		return
	}
	_ = usage

	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Request body must be valid JSON.")
		return
	}

	repo := req.repo()
	if repo == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "githubUrl (or repoUrl) or repo is required in request body.")
		return
	}

	readme, err := h.readmes.FetchReadme(r.Context(), repo)
	if err != nil {
		if errors.Is(err, github.ErrReadmeNotFound) {
			writeError(w, http.StatusNotFound, "README not found", "Could not find a README for the given repository.")
			return
		}
		writeError(w, http.StatusBadGateway, "Upstream error", "Unable to fetch the repository README. Please try again later.")
		return
	}

	summary, err := h.summarizer.SummarizeReadme(r.Context(), repo, readme)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Summarization failed", "Failed to summarize README. Please try again later.")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeAdmitError(w http.ResponseWriter, err error) {
	var quotaErr *apikeys.QuotaError
	switch {
	case errors.Is(err, apikeys.ErrMissingCredential):
		writeError(w, http.StatusUnauthorized, "API key is required",
			"Please provide your API key via Authorization header (Bearer token), x-api-key header, or 'key' query parameter.")
	case errors.Is(err, apikeys.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "Invalid API key",
			"The provided API key does not exist. Please check your API key and try again.")
	case errors.Is(err, apikeys.ErrRevokedCredential):
		writeError(w, http.StatusUnauthorized, "API key is inactive",
			"This API key has been revoked or deactivated. Please use an active API key.")
	case errors.As(err, &quotaErr):
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":   "Rate limit exceeded",
			"message": quotaErr.Error(),
			"usage":   quotaErr.Usage,
			"limit":   quotaErr.Limit,
		})
	default:
		writeError(w, http.StatusInternalServerError, "Authentication failed",
			"Unable to validate API key. Please try again later.")
	}
}
