package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainEventStream = "cdclab/event-stream/v1"
	DomainScenario    = "cdclab/scenario/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StreamDigest computes a digest over a lane's full event stream.
// Two runs produce the same digest only if their streams are byte-identical
// in canonical form, including order, timestamps and payloads.
func StreamDigest(events []CapturedEvent) (string, error) {
	canonical, err := MarshalEventsCanonical(events)
	if err != nil {
		return "", fmt.Errorf("StreamDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEventStream, canonical), nil
}

// ScenarioDigest computes a digest identifying a scenario's content.
func ScenarioDigest(s *Scenario) (string, error) {
	canonical, err := MarshalScenarioCanonical(s)
	if err != nil {
		return "", fmt.Errorf("ScenarioDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScenario, canonical), nil
}

// MustStreamDigest is like StreamDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStreamDigest(events []CapturedEvent) string {
	d, err := StreamDigest(events)
	if err != nil {
		panic(err)
	}
	return d
}
