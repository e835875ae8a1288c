// Package integrity provides tamper-evident hashing over execution
// artifacts. All functions are pure and deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/llm-observatory/observatory/internal/execution"
)

// ContentHash produces the SHA-256 hex digest of artifact content. This is
// the same digest artifact constructors stamp into content_hash.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyInlineArtifact recomputes the content hash of an inline artifact and
// checks it against the stored one. Reference artifacts are reported as
// verified since their content is not available here.
func VerifyInlineArtifact(a execution.Artifact) bool {
	if a.ContentLocation != execution.ContentLocationInline {
		return true
	}
	return a.ContentHash == ContentHash([]byte(a.Data))
}

// ExecutionDigest produces a Merkle root over every artifact content hash in
// the result, in span order then artifact order. The digest binds the full
// artifact set of an execution: any added, removed, reordered or altered
// artifact changes the root. Returns "" for an execution with no artifacts.
func ExecutionDigest(result *execution.Result) string {
	var leaves []string
	for _, a := range result.RepoSpan.Artifacts {
		leaves = append(leaves, a.ContentHash)
	}
	for _, span := range result.AgentSpans {
		for _, a := range span.Artifacts {
			leaves = append(leaves, a.ContentHash)
		}
	}
	return BuildMerkleRoot(leaves)
}

// hashPair produces SHA-256(0x01 || a || b) as a hex string.
// The 0x01 prefix is a domain separator for internal Merkle tree nodes (per RFC 6962),
// ensuring internal node hashes can never collide with leaf content hashes.
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01}) // internal node domain separator
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot constructs a Merkle tree from leaf hashes and returns the root.
// Leaf order is significant and must be stable across calls for determinism.
// If leaves is empty, returns an empty string.
// If leaves has one element, the root is that element.
// Odd-length levels hash the last node with itself for structural binding.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	// Build tree bottom-up.
	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				// Odd node: hash with itself for structural binding to tree position.
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}

	return level[0]
}
