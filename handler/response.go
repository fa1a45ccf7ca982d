package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type jsonResponse struct {
	status int
	body   any
}

func (j *jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

func (j *jsonResponse) withError(e *HTTPError) *jsonResponse {
	j.status = e.Status
	j.body = e
	return j
}

type JSONOption func(*jsonResponse)

func WithStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

// JSON renders {"data": v}.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: map[string]any{"data": v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Created renders {"data": v} with 201.
func Created(v any) Response {
	return JSON(v, WithStatus(http.StatusCreated))
}

// WriteError renders e as the JSON error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, e *HTTPError) error {
	return (&jsonResponse{}).withError(e).Render(w, r)
}

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// Empty creates an empty 204 response.
func Empty() Response {
	return emptyResponse{status: http.StatusNoContent}
}

type blobResponse struct {
	contentType string
	data        []byte
}

func (b blobResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", b.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.data)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(b.data)
	return err
}

// Blob writes raw bytes with the given content type.
func Blob(contentType string, data []byte) Response {
	return blobResponse{contentType: contentType, data: data}
}
