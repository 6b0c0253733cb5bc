package dto

import (
	"time"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/navigation"
)

// PositionRequest carries either a sample or a sensor error code
// ("denied", "unavailable", "timeout").
type PositionRequest struct {
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	AccuracyMeters float64  `json:"accuracy_meters"`
	HeadingDegrees *float64 `json:"heading_degrees"`
	Error          string   `json:"error"`
	Message        string   `json:"message"`
}

func (p PositionRequest) Position() domain.Position {
	return domain.Position{
		LatLng:         domain.LatLng{Lat: p.Lat, Lng: p.Lng},
		AccuracyMeters: p.AccuracyMeters,
		Heading:        p.HeadingDegrees,
	}
}

type NavStep struct {
	LegIndex        int     `json:"leg_index"`
	StepIndex       int     `json:"step_index"`
	InstructionText string  `json:"instruction_text"`
	Maneuver        string  `json:"maneuver,omitempty"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	EndPoint        *LatLng `json:"end_point,omitempty"`
}

type Warning struct {
	Source  string    `json:"source"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type NavigationResponse struct {
	State                    string           `json:"state"`
	Steps                    []NavStep        `json:"steps"`
	CurrentStepIndex         int              `json:"current_step_index"`
	CurrentStep              *NavStep         `json:"current_step,omitempty"`
	LastPosition             *LatLng          `json:"last_position,omitempty"`
	FollowCamera             bool             `json:"follow_camera"`
	CameraTarget             *LatLng          `json:"camera_target,omitempty"`
	Tracking                 bool             `json:"tracking"`
	DurationSeconds          float64          `json:"duration_seconds"`
	DurationInTrafficSeconds *float64         `json:"duration_in_traffic_seconds,omitempty"`
	TrafficSource            string           `json:"traffic_source"`
	TrafficSegments          []TrafficSegment `json:"traffic_segments"`
	Warnings                 []Warning        `json:"warnings"`
}

func fromNavStep(s domain.NavStep) NavStep {
	out := NavStep{
		LegIndex:        s.LegIndex,
		StepIndex:       s.StepIndex,
		InstructionText: s.InstructionText,
		Maneuver:        s.Maneuver,
		DistanceMeters:  s.DistanceMeters,
		DurationSeconds: s.DurationSeconds,
	}
	if s.EndPoint != nil {
		p := FromLatLng(*s.EndPoint)
		out.EndPoint = &p
	}
	return out
}

func FromSnapshot(s navigation.Snapshot, camera *domain.LatLng) NavigationResponse {
	out := NavigationResponse{
		State:                    string(s.State),
		Steps:                    make([]NavStep, 0, len(s.Steps)),
		CurrentStepIndex:         s.CurrentStepIndex,
		FollowCamera:             s.FollowCamera,
		Tracking:                 s.Tracking,
		DurationSeconds:          s.DurationSeconds,
		DurationInTrafficSeconds: s.DurationInTrafficSeconds,
		TrafficSource:            string(s.TrafficSource),
		TrafficSegments:          TrafficSegments(s.Traffic),
		Warnings:                 make([]Warning, 0, len(s.Warnings)),
	}
	for _, st := range s.Steps {
		out.Steps = append(out.Steps, fromNavStep(st))
	}
	if s.CurrentStep != nil {
		st := fromNavStep(*s.CurrentStep)
		out.CurrentStep = &st
	}
	if s.LastPosition != nil {
		p := FromLatLng(s.LastPosition.LatLng)
		out.LastPosition = &p
	}
	if camera != nil {
		p := FromLatLng(*camera)
		out.CameraTarget = &p
	}
	for _, w := range s.Warnings {
		out.Warnings = append(out.Warnings, Warning(w))
	}
	return out
}
