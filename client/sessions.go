package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"

	"github.com/witanlabs/gridcmd/command"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (c *Client) sessionURL(path string, withSheet bool) (string, error) {
	u, err := url.Parse(c.BaseURL + "/v0/sessions" + path)
	if err != nil {
		return "", fmt.Errorf("building URL: %w", err)
	}
	if withSheet && c.Sheet != "" {
		q := u.Query()
		q.Set("sheet", c.Sheet)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// CreateSession starts a server session. An empty filePath starts with an
// empty sheet; otherwise the workbook is uploaded.
func (c *Client) CreateSession(filePath string) (*SessionInfo, error) {
	var payload []byte
	var contentType string
	if filePath != "" {
		var err error
		payload, contentType, err = buildMultipartPayload(filePath)
		if err != nil {
			return nil, err
		}
	}

	raw, err := c.do(request{
		kind:        replayable,
		method:      http.MethodPost,
		withSheet:   true,
		contentType: contentType,
		body:        payload,
	})
	if err != nil {
		return nil, err
	}
	if raw.StatusCode != http.StatusCreated {
		return nil, parseAPIError(raw.StatusCode, raw.Body, raw.RetryAfter)
	}

	var result SessionInfo
	if err := json.Unmarshal(raw.Body, &result); err != nil {
		return nil, fmt.Errorf("parsing session response: %w", err)
	}
	return &result, nil
}

func buildMultipartPayload(filePath string) ([]byte, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(filePath)))
	h.Set("Content-Type", xlsxContentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("writing file to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalizing multipart payload: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// GetSession returns a session's metadata and cells.
func (c *Client) GetSession(id string) (*SessionInfo, error) {
	raw, err := c.get("/"+url.PathEscape(id), false)
	if err != nil {
		return nil, err
	}
	var result SessionInfo
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parsing session response: %w", err)
	}
	return &result, nil
}

// DownloadWorkbook returns the session's sheet as .xlsx bytes.
func (c *Client) DownloadWorkbook(id string) ([]byte, error) {
	return c.get("/"+url.PathEscape(id)+"/file", true)
}

func (c *Client) get(path string, withSheet bool) ([]byte, error) {
	raw, err := c.do(request{kind: replayable, method: http.MethodGet, path: path, withSheet: withSheet})
	if err != nil {
		return nil, err
	}
	if raw.StatusCode != http.StatusOK {
		return nil, parseAPIError(raw.StatusCode, raw.Body, raw.RetryAfter)
	}
	return raw.Body, nil
}

// Exec runs one command in a session. A command that fails on the server is
// not an error: it comes back as reward -1.
func (c *Client) Exec(id string, cmd command.Command) (*ExecResponse, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshaling command: %w", err)
	}
	return c.ExecJSON(id, body)
}

// ExecJSON sends an already-encoded command. It is not replayed after a
// timeout or gateway error, since the server may already have applied it.
func (c *Client) ExecJSON(id string, body []byte) (*ExecResponse, error) {
	raw, err := c.do(request{
		kind:        mutating,
		method:      http.MethodPost,
		path:        "/" + url.PathEscape(id) + "/exec",
		contentType: "application/json",
		body:        body,
	})
	if err != nil {
		return nil, err
	}
	if raw.StatusCode != http.StatusOK {
		return nil, parseAPIError(raw.StatusCode, raw.Body, raw.RetryAfter)
	}

	var result ExecResponse
	if err := json.Unmarshal(raw.Body, &result); err != nil {
		return nil, fmt.Errorf("parsing exec response: %w", err)
	}
	return &result, nil
}

// DeleteSession ends a session. Deleting a session that is already gone is
// not an error.
func (c *Client) DeleteSession(id string) error {
	raw, err := c.do(request{kind: replayable, method: http.MethodDelete, path: "/" + url.PathEscape(id)})
	if err != nil {
		return err
	}
	switch raw.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return parseAPIError(raw.StatusCode, raw.Body, raw.RetryAfter)
	}
}

// EnsureSession returns a session holding the workbook at filePath, reusing
// the one created earlier for identical content when the cache has it. A
// reused session may have expired server-side; callers that get a 404 should
// use RecreateSession.
func (c *Client) EnsureSession(filePath string) (string, error) {
	if c.cache == nil {
		info, err := c.CreateSession(filePath)
		if err != nil {
			return "", err
		}
		return info.ID, nil
	}

	key, err := HashFile(filePath, c.BaseURL, c.Sheet)
	if err != nil {
		return "", err
	}
	if entry, ok := c.cache.Get(key); ok {
		return entry.SessionID, nil
	}

	info, err := c.CreateSession(filePath)
	if err != nil {
		return "", err
	}
	entry := CacheEntry{SessionID: info.ID, Revision: info.Revision, Filename: filepath.Base(filePath)}
	if fi, statErr := os.Stat(filePath); statErr == nil {
		entry.Bytes = fi.Size()
	}
	c.cache.Put(key, entry)
	return info.ID, nil
}

// RecreateSession evicts the cache entry for filePath and creates a fresh
// session from it.
func (c *Client) RecreateSession(filePath string) (string, error) {
	c.ForgetSession(filePath)
	return c.EnsureSession(filePath)
}

// ForgetSession drops the cached session for filePath's current content.
// Call it before overwriting a file whose session has moved on.
func (c *Client) ForgetSession(filePath string) {
	if c.cache == nil {
		return
	}
	if key, err := HashFile(filePath, c.BaseURL, c.Sheet); err == nil {
		c.cache.Evict(key)
	}
}

// UpdateCachedSession records that filePath's current content is held by
// session id at revision, typically after saving a downloaded workbook.
func (c *Client) UpdateCachedSession(filePath, id string, revision int) error {
	if c.cache == nil {
		return nil
	}
	key, err := HashFile(filePath, c.BaseURL, c.Sheet)
	if err != nil {
		return err
	}
	entry := CacheEntry{SessionID: id, Revision: revision, Filename: filepath.Base(filePath)}
	if fi, statErr := os.Stat(filePath); statErr == nil {
		entry.Bytes = fi.Size()
	}
	c.cache.Put(key, entry)
	return nil
}

// ExecFile runs cmd against the session for filePath, re-creating the session
// once if the cached one is gone. It returns the session ID used.
func (c *Client) ExecFile(filePath string, cmd command.Command) (string, *ExecResponse, error) {
	id, err := c.EnsureSession(filePath)
	if err != nil {
		return "", nil, err
	}
	resp, err := c.Exec(id, cmd)
	if IsNotFound(err) {
		if id, err = c.RecreateSession(filePath); err != nil {
			return "", nil, err
		}
		resp, err = c.Exec(id, cmd)
	}
	if err != nil {
		return "", nil, err
	}
	return id, resp, nil
}
