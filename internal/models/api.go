package models

import (
	"github.com/google/uuid"
)

// --- Request Structs ---

// SendMessageRequest defines the body for posting a prompt to a widget.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// GenerateMemeRequest defines the body for the meme generator endpoint.
// The reference image is optional and travels base64 encoded.
type GenerateMemeRequest struct {
	Prompt               string `json:"prompt"`
	ReferenceImageBase64 string `json:"reference_image_base64,omitempty"`
	ReferenceMIMEType    string `json:"reference_mime_type,omitempty"`
}

// --- Response Structs ---

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateWidgetResponse is returned when a new builder widget is created.
type CreateWidgetResponse struct {
	WidgetID    uuid.UUID `json:"widget_id"`
	AccessToken string    `json:"access_token"`
	Transcript  []Message `json:"transcript"`
}

// WidgetResponse describes the current state of a widget.
type WidgetResponse struct {
	WidgetID    uuid.UUID `json:"widget_id"`
	State       string    `json:"state"` // "idle", "sending", "streaming", "tool_pending"
	Transcript  []Message `json:"transcript"`
	HasArtifact bool      `json:"has_artifact"`
}

// ArtifactResponse carries the generated HTML document.
type ArtifactResponse struct {
	WidgetID uuid.UUID `json:"widget_id"`
	HTML     string    `json:"html"`
}

// StaticHost is a free static-hosting provider the artifact can be published to.
type StaticHost struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DeployOptionsResponse lists the ways a generated document can leave the builder.
type DeployOptionsResponse struct {
	DownloadFilename string       `json:"download_filename"`
	StaticHosts      []StaticHost `json:"static_hosts"`
	MobileWrapper    string       `json:"mobile_wrapper"`
	MobileSteps      []string     `json:"mobile_steps"`
}

// GenerateMemeResponse carries the generated image and the drafted social post.
type GenerateMemeResponse struct {
	ImageDataURL string `json:"image_data_url"`
	PostText     string `json:"post_text"`
	ShareURL     string `json:"share_url"`
}

// StreamEvent is pushed to WebSocket clients while a send is in progress.
type StreamEvent struct {
	Type    string   `json:"type"` // "message", "state", "artifact", "done", "error"
	Index   int      `json:"index,omitempty"`
	Message *Message `json:"message,omitempty"`
	State   string   `json:"state,omitempty"`
	HTML    string   `json:"html,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// StreamRequest is read from WebSocket clients.
type StreamRequest struct {
	Text string `json:"text"`
}
