package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CurrentCanonicalVersion defines the canonicalization format version.
// Increment when canonicalization logic changes to invalidate stale cache entries.
const CurrentCanonicalVersion = "v2.0"

// Validation errors for canonical payloads.
var (
	ErrTenantIDRequired  = errors.New("tenant_id is required")
	ErrOperationRequired = errors.New("operation is required")
	ErrProviderRequired  = errors.New("provider is required")
	ErrModelRequired     = errors.New("model is required")
	ErrInvalidOperation  = errors.New("invalid operation")
)

// CanonicalPayload represents the normalized, stable form of a logical LLM request.
// It serves as the sole input to IdemKey hashing and MUST be deterministic across
// equivalent requests regardless of incidental whitespace differences.
type CanonicalPayload struct {
	TenantID  string             `json:"tenant_id"`
	Operation OperationType      `json:"operation"`
	Provider  string             `json:"provider"`
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []CanonicalMessage `json:"messages,omitempty"`
	Params    map[string]any     `json:"params,omitempty"`
	Seed      *int64             `json:"seed,omitempty"`
	Version   string             `json:"version"`
}

// CanonicalMessage represents a normalized message in the conversation.
type CanonicalMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IdemKey provides deterministic SHA-256 hex identification for canonical payloads.
type IdemKey string

// String returns the string representation of the idempotency key.
func (k IdemKey) String() string { return string(k) }

// BuildCanonicalPayload transforms a request into normalized canonical form.
// Only non-default parameters are included to minimize key variations.
func BuildCanonicalPayload(req *Request) (*CanonicalPayload, error) {
	payload := &CanonicalPayload{
		TenantID:  req.TenantID,
		Operation: req.Operation,
		Provider:  strings.ToLower(strings.TrimSpace(req.Provider)),
		Model:     strings.TrimSpace(req.Model),
		Version:   CurrentCanonicalVersion,
		Seed:      req.Seed,
	}
	if err := validateCanonicalPayload(payload); err != nil {
		return nil, err
	}

	if req.SystemPrompt != "" {
		payload.System = normalizeText(req.SystemPrompt)
	}
	if req.Prompt != "" {
		payload.Messages = []CanonicalMessage{{Role: "user", Content: normalizeText(req.Prompt)}}
	}

	params := make(map[string]any)
	if req.MaxTokens > 0 {
		params["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != 0.0 {
		params["temperature"] = req.Temperature
	}
	if len(params) > 0 {
		payload.Params = params
	}

	return payload, nil
}

// BuildIdemKey generates a deterministic SHA-256 idempotency key.
func BuildIdemKey(payload *CanonicalPayload) (IdemKey, error) {
	jsonBytes, err := stableJSON(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical payload: %w", err)
	}

	hash := sha256.Sum256(jsonBytes)
	return IdemKey(hex.EncodeToString(hash[:])), nil
}

// GenerateIdemKey builds the canonical payload of req and hashes it.
func GenerateIdemKey(req *Request) (IdemKey, error) {
	payload, err := BuildCanonicalPayload(req)
	if err != nil {
		return "", fmt.Errorf("failed to build canonical payload: %w", err)
	}
	return BuildIdemKey(payload)
}

// CacheKey constructs the complete Redis cache key.
// Uses hierarchical format llm:{tenant}:{operation}:{idemkey}.
func CacheKey(tenantID string, operation OperationType, idemKey IdemKey) string {
	return fmt.Sprintf("llm:%s:%s:%s", tenantID, operation, idemKey)
}

func validateCanonicalPayload(payload *CanonicalPayload) error {
	switch {
	case payload.TenantID == "":
		return ErrTenantIDRequired
	case payload.Operation == "":
		return ErrOperationRequired
	case payload.Provider == "":
		return ErrProviderRequired
	case payload.Model == "":
		return ErrModelRequired
	case !payload.Operation.IsValid():
		return fmt.Errorf("%w: %s", ErrInvalidOperation, payload.Operation)
	}
	return nil
}

// normalizeText trims, normalizes line endings and collapses runs of spaces.
func normalizeText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Join(strings.Fields(text), " ")
}

// stableJSON produces deterministic JSON output with sorted keys.
func stableJSON(v any) ([]byte, error) {
	tempJSON, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var normalized any
	if err := json.Unmarshal(tempJSON, &normalized); err != nil {
		return nil, err
	}

	return json.Marshal(sortKeys(normalized))
}

// sortKeys recursively sorts map keys for stable JSON output.
func sortKeys(v any) any {
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sorted := make(map[string]any, len(v))
		for _, k := range keys {
			sorted[k] = sortKeys(v[k])
		}
		return sorted

	case []any:
		sorted := make([]any, len(v))
		for i, elem := range v {
			sorted[i] = sortKeys(elem)
		}
		return sorted

	default:
		return v
	}
}
