package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"geodoc/types"
)

// Client talks to the remote document-generation API. Every call carries a
// timeout so a hung backend fails the operation instead of wedging the UI.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration

	mu    sync.RWMutex
	token string
}

// APIError is any non-2xx response, carrying status and raw body for
// diagnosis. User-facing messages are derived by the caller.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error: status %d, body: %s", e.Status, e.Body)
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
		timeout: timeout,
	}
}

type startRequest struct {
	Topic types.Topic `json:"topic"`
}

type replyRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type saveSectionRequest struct {
	Section    string `json:"section"`
	Subsection string `json:"subsection"`
	Content    string `json:"content"`
	Approve    bool   `json:"approve"`
}

type listFilesResponse struct {
	Files []types.UploadedFile `json:"files"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// StartConversation opens the conversation for a document and returns the
// initial assistant message.
func (c *Client) StartConversation(ctx context.Context, documentID string, topic types.Topic) (string, error) {
	var resp messageResponse
	err := c.doJSON(ctx, http.MethodPost, "/conversation/"+documentID+"/start", startRequest{Topic: topic}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Reply sends a user message and returns the assistant reply.
func (c *Client) Reply(ctx context.Context, documentID, message string) (string, error) {
	var resp messageResponse
	err := c.doJSON(ctx, http.MethodPost, "/conversation/"+documentID+"/reply", replyRequest{Message: message}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// FetchPDF returns the rendered document as raw bytes.
func (c *Client) FetchPDF(ctx context.Context, documentID string) ([]byte, error) {
	return c.doBinary(ctx, "/documents/"+documentID+"/pdf")
}

// DownloadPDF returns the document prepared for saving.
func (c *Client) DownloadPDF(ctx context.Context, documentID string) ([]byte, error) {
	return c.doBinary(ctx, "/documents/"+documentID+"/download")
}

// SaveSection persists edited subsection content. With approve set the
// backend also marks the content as final.
func (c *Client) SaveSection(ctx context.Context, documentID, section, subsection, content string, approve bool) error {
	req := saveSectionRequest{
		Section:    section,
		Subsection: subsection,
		Content:    content,
		Approve:    approve,
	}
	return c.doJSON(ctx, http.MethodPut, "/documents/"+documentID+"/sections", req, nil)
}

// UploadFile attaches a file to a document, optionally scoped to a
// section/subsection.
func (c *Client) UploadFile(ctx context.Context, documentID, filename string, data []byte, section, subsection string) (*types.UploadedFile, error) {
	fields := map[string]string{}
	if section != "" {
		fields["section"] = section
	}
	if subsection != "" {
		fields["subsection"] = subsection
	}
	var file types.UploadedFile
	if err := c.doMultipart(ctx, "/upload/"+documentID+"/file", filename, data, fields, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// UploadFileWithMessage uploads a file as part of the chat flow, with an
// optional accompanying message.
func (c *Client) UploadFileWithMessage(ctx context.Context, documentID, filename string, data []byte, message string) (*types.UploadedFile, error) {
	fields := map[string]string{}
	if message != "" {
		fields["message"] = message
	}
	var file types.UploadedFile
	if err := c.doMultipart(ctx, "/upload/"+documentID+"/message-file", filename, data, fields, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (c *Client) ListFiles(ctx context.Context, documentID string) ([]types.UploadedFile, error) {
	var resp listFilesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/upload/"+documentID+"/files", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (c *Client) FileStatus(ctx context.Context, fileID string) (*types.UploadedFile, error) {
	var file types.UploadedFile
	if err := c.doJSON(ctx, http.MethodGet, "/upload/files/status/"+fileID, nil, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (c *Client) DeleteFile(ctx context.Context, documentID, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/upload/"+documentID+"/files/"+fileID, nil, nil)
}

func (c *Client) CoverPageStructure(ctx context.Context, documentID string) ([]types.CoverPageField, error) {
	var fields []types.CoverPageField
	if err := c.doJSON(ctx, http.MethodGet, "/cover-page/"+documentID+"/structure", nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *Client) CoverPageData(ctx context.Context, documentID string) (map[string]string, error) {
	data := make(map[string]string)
	if err := c.doJSON(ctx, http.MethodGet, "/cover-page/"+documentID+"/data", nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) SaveCoverPageData(ctx context.Context, documentID string, data map[string]string) error {
	return c.doJSON(ctx, http.MethodPut, "/cover-page/"+documentID+"/data", data, nil)
}

func (c *Client) ListProjects(ctx context.Context) ([]types.Project, error) {
	var projects []types.Project
	if err := c.doJSON(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) CreateProject(ctx context.Context, name string, topic types.Topic) (*types.Project, error) {
	var project types.Project
	req := types.Project{Name: name, Topic: topic}
	if err := c.doJSON(ctx, http.MethodPost, "/projects", req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) UpdateProject(ctx context.Context, projectID, name string) (*types.Project, error) {
	var project types.Project
	req := types.Project{Name: name}
	if err := c.doJSON(ctx, http.MethodPut, "/projects/"+projectID, req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/projects/"+projectID, nil, nil)
}

// Login authenticates against the backend and installs the returned token on
// the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/register", loginRequest{Email: email, Password: password}, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody any, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(respBody))
	}
	return nil
}

func (c *Client) doBinary(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) doMultipart(ctx context.Context, path, filename string, data []byte, fields map[string]string, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(respBody))
	}
	return nil
}
