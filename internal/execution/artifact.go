package execution

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ContentLocation tags where an artifact's content lives.
type ContentLocation string

const (
	// ContentLocationInline means the content is embedded in the artifact.
	ContentLocationInline ContentLocation = "inline"
	// ContentLocationReference means the content is stored externally.
	ContentLocationReference ContentLocation = "reference"
)

// ArtifactContent is the flattened tagged union discriminated by
// content_location: inline content carries Data, references carry URI.
// Exactly one of the two is populated; use InlineContent or ReferenceContent.
type ArtifactContent struct {
	ContentLocation ContentLocation `json:"content_location"`
	Data            string          `json:"data,omitempty"`
	URI             string          `json:"uri,omitempty"`
}

// InlineContent returns content embedded directly in the artifact.
func InlineContent(data string) ArtifactContent {
	return ArtifactContent{ContentLocation: ContentLocationInline, Data: data}
}

// ReferenceContent returns content stored externally at the given URI.
func ReferenceContent(uri string) ArtifactContent {
	return ArtifactContent{ContentLocation: ContentLocationReference, URI: uri}
}

// Artifact is a content-addressed output object produced by an agent and
// attached to its span. Immutable once created; the owning span's artifact
// list is the only ownership edge, AgentSpanID is a plain id back-reference.
type Artifact struct {
	ArtifactID  string `json:"artifact_id"`
	AgentSpanID string `json:"agent_span_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	// ContentHash is the SHA-256 hex digest of the content, used for
	// integrity and stable external referencing. Not used for deduplication.
	ContentHash string `json:"content_hash"`
	SizeBytes   uint64 `json:"size_bytes"`
	ArtifactContent
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
}

// MarshalJSON emits the active content variant's field unconditionally:
// inline artifacts always carry "data" (even when the content is empty),
// reference artifacts always carry "uri", and the inactive field is never
// present. Plain omitempty tags would drop "data" for empty inline content.
func (a Artifact) MarshalJSON() ([]byte, error) {
	type alias Artifact
	w := struct {
		alias
		Data *string `json:"data,omitempty"`
		URI  *string `json:"uri,omitempty"`
	}{alias: alias(a)}
	switch a.ContentLocation {
	case ContentLocationInline:
		w.Data = &a.Data
	case ContentLocationReference:
		w.URI = &a.URI
	}
	return json.Marshal(w)
}

// NewInlineArtifact creates an artifact with inline content, computing the
// content hash and size from the data.
func NewInlineArtifact(agentSpanID, name, contentType string, data []byte) Artifact {
	sum := sha256.Sum256(data)
	return Artifact{
		ArtifactID:      uuid.NewString(),
		AgentSpanID:     agentSpanID,
		Name:            name,
		ContentType:     contentType,
		ContentHash:     hex.EncodeToString(sum[:]),
		SizeBytes:       uint64(len(data)),
		ArtifactContent: InlineContent(string(data)),
		CreatedAt:       time.Now().UTC(),
		Metadata:        map[string]any{},
	}
}

// NewReferenceArtifact creates an artifact whose content lives at an external
// URI. The caller supplies the content hash and size since the content is not
// available here.
func NewReferenceArtifact(agentSpanID, name, contentType, uri, contentHash string, sizeBytes uint64) Artifact {
	return Artifact{
		ArtifactID:      uuid.NewString(),
		AgentSpanID:     agentSpanID,
		Name:            name,
		ContentType:     contentType,
		ContentHash:     contentHash,
		SizeBytes:       sizeBytes,
		ArtifactContent: ReferenceContent(uri),
		CreatedAt:       time.Now().UTC(),
		Metadata:        map[string]any{},
	}
}
