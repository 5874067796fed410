// Package scan implements the channel discovery and evaluation
// pipeline: candidate extraction, deduplication, deterministic and
// semantic matching, batched classifier evaluation, and the scan
// orchestrator that ties them together.
package scan
