package object

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gitmap-dev/gitmap/webmap"
)

// Commit is an immutable snapshot of the web map with version control
// metadata. A commit has zero parents (root commit), one parent
// (normal commit) or two parents (merge commit).
type Commit struct {
	// ID is the content hash of the commit, see ComputeID.
	ID string `json:"id"`
	// Parents holds the ids of the parent commits, ours first for a
	// merge commit.
	Parents []string `json:"parents,omitempty"`
	// Author is the name of the commit author.
	Author string `json:"author"`
	// Email is the author's email address.
	Email string `json:"email,omitempty"`
	// Timestamp is the UTC creation time, truncated to seconds so the
	// canonical form is stable.
	Timestamp time.Time `json:"timestamp"`
	// Message describes the change.
	Message string `json:"message"`
	// Branch records the branch the commit was authored on. Advisory
	// only, used for history visualization; not part of the id.
	Branch string `json:"branch,omitempty"`
	// Snapshot is the full web map state captured by this commit.
	Snapshot *webmap.Document `json:"snapshot"`
}

// NewCommit creates a commit with the current timestamp and a computed
// id.
func NewCommit(message, author, email string, parents []string, snapshot *webmap.Document) (*Commit, error) {
	commit := &Commit{
		Parents:   parents,
		Author:    author,
		Email:     email,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Message:   message,
		Snapshot:  snapshot,
	}
	id, err := commit.ComputeID()
	if err != nil {
		return nil, err
	}
	commit.ID = id
	return commit, nil
}

// ComputeID derives the commit id from the canonical encoding of the
// commit content: parents, author, email, message, timestamp and the
// snapshot. The branch hint is excluded so that re-labelling history
// for visualization can never change an id.
func (c *Commit) ComputeID() (string, error) {
	content := map[string]any{
		"author":    c.Author,
		"email":     c.Email,
		"message":   c.Message,
		"parents":   c.Parents,
		"snapshot":  c.Snapshot,
		"timestamp": c.Timestamp.UTC().Format(time.RFC3339),
	}
	data, err := Canonical(content)
	if err != nil {
		return "", fmt.Errorf("canonicalize commit: %w", err)
	}
	return Sum(data).String(), nil
}

// Short returns the abbreviated commit id used in terminal output.
func (c *Commit) Short() string {
	return ShortID(c.ID)
}

// ShortID abbreviates a commit id to 12 characters.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Encode serializes the commit to JSON.
func (c *Commit) Encode() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// DecodeCommit deserializes a commit from JSON.
func DecodeCommit(data []byte) (*Commit, error) {
	var commit Commit
	if err := json.Unmarshal(data, &commit); err != nil {
		return nil, fmt.Errorf("decode commit: %w", err)
	}
	return &commit, nil
}
