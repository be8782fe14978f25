// Package fingerprint computes stable digests of compiled queries, used as
// cache keys and to check that compilation is deterministic.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Domain prefixes for query identity.
// Version suffix enables future algorithm migration.
const (
	DomainRelational = "docquery/sql/v1"
	DomainDocument   = "docquery/mongo/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Relational digests query text plus its bindings in order.
// names and values must have the same length.
func Relational(text string, names []string, values []any) (string, error) {
	if len(names) != len(values) {
		return "", fmt.Errorf("fingerprint: %d names for %d values", len(names), len(values))
	}
	params := make([][2]any, len(names))
	for i := range names {
		params[i] = [2]any{names[i], values[i]}
	}
	data, err := json.Marshal(struct {
		Text   string   `json:"text"`
		Params [][2]any `json:"params"`
	}{text, params})
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRelational, data), nil
}

// Document digests a compiled document query. kind distinguishes query
// shapes (find, pipeline) whose bodies could otherwise coincide.
func Document(kind string, body any) (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "kind", Value: kind}, {Key: "body", Value: body}}, true, false)
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, data), nil
}
