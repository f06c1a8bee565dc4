package emission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

type fingerprintAssessment struct {
	Ref    string             `json:"r"`
	State  string             `json:"s"`
	Scores map[string]float64 `json:"c,omitempty"`
}

type fingerprintInput struct {
	BatchID     int64                   `json:"b"`
	Assessments []fingerprintAssessment `json:"a"`
	Warnings    []domain.Reason         `json:"w"`
}

// fingerprint identifies the rendered content of a snapshot. The snapshot
// time is left out so a retry of unchanged data hits the render cache.
func fingerprint(s domain.BatchSnapshot) string {
	in := fingerprintInput{
		BatchID:     s.Batch.ID,
		Assessments: make([]fingerprintAssessment, 0, len(s.Assessments)),
		Warnings:    s.Readiness.Warnings(),
	}
	for _, v := range s.Assessments {
		in.Assessments = append(in.Assessments, fingerprintAssessment{Ref: v.EmployeeRef, State: string(v.State), Scores: v.Scores})
	}
	sort.Slice(in.Assessments, func(i, j int) bool { return in.Assessments[i].Ref < in.Assessments[j].Ref })

	// json.Marshal sorts map keys, so equal inputs encode identically.
	raw, _ := json.Marshal(in)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
