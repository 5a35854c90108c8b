package git

import (
	"path"
	"strings"
	"time"
)

// CommitInfo contains metadata about a Git commit.
type CommitInfo struct {
	SHA        string    `json:"sha"`
	Author     string    `json:"author"`
	Email      string    `json:"email"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	Branch     string    `json:"branch"`
	Repository string    `json:"repository"`
}

// Short returns the abbreviated commit SHA.
func (c *CommitInfo) Short() string {
	if c == nil {
		return ""
	}
	return shortSHA(c.SHA)
}

// PullResult contains result of a pull operation.
type PullResult struct {
	FromSHA      string
	ToSHA        string
	ChangedFiles []string
	HadChanges   bool
}

// Touches reports whether the pull changed the file at rel, a slash or
// OS separated path relative to the repository root.
func (r *PullResult) Touches(rel string) bool {
	want := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	for _, f := range r.ChangedFiles {
		if path.Clean(f) == want {
			return true
		}
	}
	return false
}

// RepositoryMetrics tracks Git operation metrics.
type RepositoryMetrics struct {
	CloneDuration   time.Duration
	PullDuration    time.Duration
	LastCommitSHA   string
	LastPullTime    time.Time
	FailedPulls     int64
	SuccessfulPulls int64
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
