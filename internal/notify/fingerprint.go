// Package notify implements the SmartAlert engine and notification
// fan-out of §4.8: fingerprinted watch conditions evaluated on each
// alert-scan tick (not on each quote refresh), opportunity scans at a
// bounded cadence, and delivery
// to the per-user notification store plus an optional ops-only
// critical-alert channel.
package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/models"
)

// thresholdBucketWidth groups thresholds into coarse buckets before
// hashing (spec glossary: "bucketised threshold") so two alerts that
// differ only by a cosmetic fraction of a cent collide into the same
// fingerprint rather than silently both arming.
const thresholdBucketWidth = 0.001

// Fingerprint computes the stable hash identifying an alert's
// (owner, symbol, condition, bucketised threshold) tuple (§3, invariant
// 6: two armed alerts with the same fingerprint for the same owner
// cannot coexist).
func Fingerprint(ownerID, symbol string, condition models.AlertCondition, threshold decimal.Decimal) string {
	bucket := bucketize(threshold)
	raw := fmt.Sprintf("%s|%s|%s|%s", ownerID, symbol, condition, bucket)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// bucketize rounds threshold down to the nearest bucket boundary and
// renders it with fixed precision so equal buckets always produce an
// identical string regardless of the decimal's internal representation.
func bucketize(threshold decimal.Decimal) string {
	f, _ := threshold.Float64()
	bucketed := math.Floor(f/thresholdBucketWidth) * thresholdBucketWidth
	return fmt.Sprintf("%.6f", bucketed)
}

// OpportunityFingerprint identifies a scan-generated opportunity the
// same way an alert is identified, deduplicated per owner (§4.8
// "opportunities ... are deduplicated by fingerprint for the same
// owner").
func OpportunityFingerprint(ownerID, symbol, kind string) string {
	raw := fmt.Sprintf("opportunity|%s|%s|%s", ownerID, symbol, kind)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
