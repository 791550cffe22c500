// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conduit implements the client side of the Conduit API.
//
// Conduit methods are invoked by POSTing a form-encoded request to
// <install>/api/<method> with the call parameters JSON-encoded in the
// "params" field. Responses arrive in a {result, error_code, error_info}
// envelope. Authentication rides inside the params as a "__conduit__"
// token entry.
package conduit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wangkun611/arcanist/internal/logger"
)

// Client calls Conduit methods on a single install.
type Client struct {
	uri   string
	token string
	http  *http.Client
}

// NewClient returns a client for the install at uri. An empty token makes
// anonymous calls, which most installs reject.
func NewClient(uri, token string) *Client {
	return &Client{
		uri:   strings.TrimRight(uri, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a structured failure reported by the remote install.
type Error struct {
	Code string
	Info string
}

func (e *Error) Error() string {
	if e.Info == "" {
		return e.Code
	}
	return e.Code + ": " + e.Info
}

// Unsupported reports whether the failure means the server does not know
// the called method at all, as opposed to rejecting this particular call.
func (e *Error) Unsupported() bool { return e.Code == "ERR-CONDUIT-CALL" }

// Call invokes method with params and decodes the result envelope into out.
// A non-nil *Error return means the server processed the call and refused
// it; any other error is a transport or decoding problem.
func (c *Client) Call(ctx context.Context, method string, params map[string]any, out any) error {
	merged := make(map[string]any, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	if c.token != "" {
		merged["__conduit__"] = map[string]string{"token": c.token}
	}
	blob, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("conduit %s: encoding params: %v", method, err)
	}

	form := url.Values{
		"params":      {string(blob)},
		"output":      {"json"},
		"__conduit__": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uri+"/api/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("conduit %s: %v", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("conduit %s: %v", method, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	logger.Debug().Str("method", method).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("conduit call")
	if err != nil {
		return fmt.Errorf("conduit %s: reading response: %v", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conduit %s: HTTP %s", method, resp.Status)
	}

	var env struct {
		Result    json.RawMessage `json:"result"`
		ErrorCode string          `json:"error_code"`
		ErrorInfo string          `json:"error_info"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("conduit %s: malformed response: %v", method, err)
	}
	if env.ErrorCode != "" {
		return &Error{Code: env.ErrorCode, Info: env.ErrorInfo}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("conduit %s: decoding result: %v", method, err)
	}
	return nil
}

// Legacy revision status codes, as reported in the "status" field of
// differential.query results.
const (
	StatusNeedsReview    = "0"
	StatusNeedsRevision  = "1"
	StatusAccepted       = "2"
	StatusClosed         = "3"
	StatusAbandoned      = "4"
	StatusChangesPlanned = "5"
)

// Revision is one code review record.
type Revision struct {
	ID             int
	PHID           string
	Title          string
	URI            string
	Status         string
	StatusName     string
	AuthorPHID     string
	Branch         string
	ActiveDiffPHID string
	Dependencies   []string // PHIDs of revisions this one depends on
}

// Accepted reports whether the revision has been accepted by a reviewer.
func (r *Revision) Accepted() bool { return r.Status == StatusAccepted }

// Open reports whether the revision still awaits action.
func (r *Revision) Open() bool {
	return r.Status != StatusClosed && r.Status != StatusAbandoned
}

// Name returns the short "D123" form.
func (r *Revision) Name() string { return fmt.Sprintf("D%d", r.ID) }

// Display returns the "D123: Title" form used in prompts and errors.
func (r *Revision) Display() string { return fmt.Sprintf("D%d: %s", r.ID, r.Title) }

// revisionWire is the differential.query wire shape. Numeric fields arrive
// as strings and dependency PHIDs hide in the auxiliary map.
type revisionWire struct {
	ID             string                     `json:"id"`
	PHID           string                     `json:"phid"`
	Title          string                     `json:"title"`
	URI            string                     `json:"uri"`
	Status         string                     `json:"status"`
	StatusName     string                     `json:"statusName"`
	AuthorPHID     string                     `json:"authorPHID"`
	Branch         string                     `json:"branch"`
	ActiveDiffPHID string                     `json:"activeDiffPHID"`
	Auxiliary      map[string]json.RawMessage `json:"auxiliary"`
}

func (w *revisionWire) revision() (*Revision, error) {
	id, err := strconv.Atoi(w.ID)
	if err != nil {
		return nil, fmt.Errorf("bad revision id %q", w.ID)
	}
	r := &Revision{
		ID:             id,
		PHID:           w.PHID,
		Title:          w.Title,
		URI:            w.URI,
		Status:         w.Status,
		StatusName:     w.StatusName,
		AuthorPHID:     w.AuthorPHID,
		Branch:         w.Branch,
		ActiveDiffPHID: w.ActiveDiffPHID,
	}
	if raw, ok := w.Auxiliary["phabricator:depends-on"]; ok {
		// The field is a list of PHIDs, but old installs emit {} or null
		// when empty. Ignore anything that does not decode as a list.
		var deps []string
		if err := json.Unmarshal(raw, &deps); err == nil {
			r.Dependencies = deps
		}
	}
	return r, nil
}

// Commit hash types understood by differential.query.
const (
	HashGitCommit = "gtcm"
	HashGitTree   = "gttr"
)

// RevisionQuery selects revisions for QueryRevisions.
// Zero fields are omitted from the call.
type RevisionQuery struct {
	IDs          []int
	PHIDs        []string
	CommitHashes [][2]string // (hash type, hash) pairs
	Status       string      // e.g. "status-open"
}

// QueryRevisions calls differential.query.
func (c *Client) QueryRevisions(ctx context.Context, q RevisionQuery) ([]*Revision, error) {
	params := make(map[string]any)
	if len(q.IDs) > 0 {
		params["ids"] = q.IDs
	}
	if len(q.PHIDs) > 0 {
		params["phids"] = q.PHIDs
	}
	if len(q.CommitHashes) > 0 {
		params["commitHashes"] = q.CommitHashes
	}
	if q.Status != "" {
		params["status"] = q.Status
	}
	var wire []revisionWire
	if err := c.Call(ctx, "differential.query", params, &wire); err != nil {
		return nil, err
	}
	revs := make([]*Revision, 0, len(wire))
	for i := range wire {
		r, err := wire[i].revision()
		if err != nil {
			return nil, fmt.Errorf("differential.query: %v", err)
		}
		revs = append(revs, r)
	}
	return revs, nil
}

// GetCommitMessage calls differential.getcommitmessage and returns the
// canonical commit message for the revision.
func (c *Client) GetCommitMessage(ctx context.Context, id int) (string, error) {
	var msg string
	if err := c.Call(ctx, "differential.getcommitmessage", map[string]any{"revision_id": id}, &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// CloseRevision calls differential.close.
func (c *Client) CloseRevision(ctx context.Context, id int) error {
	return c.Call(ctx, "differential.close", map[string]any{"revisionID": id}, nil)
}

// User identifies an account on the remote install.
type User struct {
	PHID     string `json:"phid"`
	UserName string `json:"userName"`
	RealName string `json:"realName"`
}

// WhoAmI calls user.whoami for the authenticated account.
func (c *Client) WhoAmI(ctx context.Context) (*User, error) {
	var u User
	if err := c.Call(ctx, "user.whoami", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// QueryUsers calls user.query by usernames or PHIDs.
func (c *Client) QueryUsers(ctx context.Context, usernames, phids []string) ([]*User, error) {
	params := make(map[string]any)
	if len(usernames) > 0 {
		params["usernames"] = usernames
	}
	if len(phids) > 0 {
		params["phids"] = phids
	}
	var users []*User
	if err := c.Call(ctx, "user.query", params, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Recognized buildable statuses. Anything else is treated as unknown.
const (
	BuildablePassed   = "passed"
	BuildableBuilding = "building"
	BuildableFailed   = "failed"
)

// Buildable is the build-system wrapper around a diff.
type Buildable struct {
	PHID   string `json:"phid"`
	Status string `json:"buildableStatus"`
}

// QueryBuildables calls harbormaster.querybuildables for the given diff
// PHIDs, excluding manual buildables.
func (c *Client) QueryBuildables(ctx context.Context, diffPHIDs []string) ([]*Buildable, error) {
	params := map[string]any{
		"buildablePHIDs":   diffPHIDs,
		"manualBuildables": false,
	}
	var res struct {
		Data []*Buildable `json:"data"`
	}
	if err := c.Call(ctx, "harbormaster.querybuildables", params, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Build is a single build run attached to a buildable.
type Build struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	Status string      `json:"buildStatus"`
}

// QueryBuilds calls harbormaster.querybuilds for the given buildable PHIDs.
func (c *Client) QueryBuilds(ctx context.Context, buildablePHIDs []string) ([]*Build, error) {
	params := map[string]any{"buildablePHIDs": buildablePHIDs}
	var res struct {
		Data []*Build `json:"data"`
	}
	if err := c.Call(ctx, "harbormaster.querybuilds", params, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Project is a tag applied to tasks and revisions.
type Project struct {
	PHID  string   `json:"phid"`
	Name  string   `json:"name"`
	Slugs []string `json:"slugs"`
}

// QueryProjects calls project.query by project names.
func (c *Client) QueryProjects(ctx context.Context, names []string) ([]*Project, error) {
	params := map[string]any{"names": names}
	var res struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.Call(ctx, "project.query", params, &res); err != nil {
		return nil, err
	}
	// An install with no matches encodes the empty map as a JSON array.
	data := bytes.TrimSpace(res.Data)
	if len(data) == 0 || data[0] == '[' {
		return nil, nil
	}
	var m map[string]*Project
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("project.query: decoding result: %v", err)
	}
	projs := make([]*Project, 0, len(m))
	for _, p := range m {
		projs = append(projs, p)
	}
	return projs, nil
}

// Task is a tracked work item.
type Task struct {
	ID    json.Number `json:"id"`
	PHID  string      `json:"phid"`
	Title string      `json:"title"`
	URI   string      `json:"uri"`
}

// CreateTask calls maniphest.createtask.
func (c *Client) CreateTask(ctx context.Context, title, ownerPHID string, ccPHIDs, projectPHIDs []string) (*Task, error) {
	params := map[string]any{"title": title}
	if ownerPHID != "" {
		params["ownerPHID"] = ownerPHID
	}
	if len(ccPHIDs) > 0 {
		params["ccPHIDs"] = ccPHIDs
	}
	if len(projectPHIDs) > 0 {
		params["projectPHIDs"] = projectPHIDs
	}
	var t Task
	if err := c.Call(ctx, "maniphest.createtask", params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Looksoon calls diffusion.looksoon, hinting that the named repositories
// should be pulled for new commits soon. The server treats this as
// advisory and so do callers.
func (c *Client) Looksoon(ctx context.Context, callsigns []string) error {
	return c.Call(ctx, "diffusion.looksoon", map[string]any{"repositories": callsigns}, nil)
}
