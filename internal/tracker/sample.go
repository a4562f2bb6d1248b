package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vigilia/guard-backend/internal/geo"
)

var ErrSubjectRequired = errors.New("subject id is required")

// Sample is one location observation for one subject.
type Sample struct {
	SubjectID string    `json:"subjectId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

func (s Sample) Point() geo.Point {
	return geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
}

// Validate rejects samples that must never reach containment checks.
func (s Sample) Validate() error {
	if strings.TrimSpace(s.SubjectID) == "" {
		return ErrSubjectRequired
	}
	return geo.ValidateCoordinate(s.Point())
}

type sampleJSON struct {
	SubjectID *string  `json:"subjectId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp *string  `json:"timestamp"`
}

// ParseSample decodes {"subjectId","latitude","longitude","timestamp"} where
// timestamp is ISO-8601. A missing timestamp stays zero.
func ParseSample(data []byte) (Sample, error) {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	if raw.SubjectID == nil {
		return Sample{}, ErrSubjectRequired
	}
	if raw.Latitude == nil || raw.Longitude == nil {
		return Sample{}, fmt.Errorf("%w: latitude and longitude are required", geo.ErrInvalidCoordinate)
	}

	s := Sample{SubjectID: *raw.SubjectID, Latitude: *raw.Latitude, Longitude: *raw.Longitude}
	if raw.Timestamp != nil && *raw.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, *raw.Timestamp)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid timestamp %q: %w", *raw.Timestamp, err)
		}
		s.Timestamp = ts
	}
	return s, s.Validate()
}
