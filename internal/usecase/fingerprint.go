// File: internal/usecase/fingerprint.go
package usecase

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"math-eval-service/internal/domain/model"
)

// RequestFingerprint derives the cache key for one evaluation request.
// The field order is fixed; two requests differing in any field produce
// different digests, identical requests always collide.
func RequestFingerprint(sessionID, questionRef, solutionRef string, bounds model.RectBounds, userID, attemptID string) string {
	payload := fmt.Sprintf("session=%s|question=%s|solution=%s|box=%.4f,%.4f,%.4f,%.4f|user=%s|attempt=%s",
		sessionID, questionRef, solutionRef,
		bounds.MinX, bounds.MaxX, bounds.MinY, bounds.MaxY,
		userID, attemptID)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// QuestionDigest shortens an arbitrary question reference into the fixed
// token used inside tracker storage keys.
func QuestionDigest(questionRef string) string {
	sum := md5.Sum([]byte(questionRef))
	return hex.EncodeToString(sum[:])[:8]
}
