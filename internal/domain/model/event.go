package model

// EventName is the webhook event identifier for recognized attendance.
const EventName = "attendance.recognized"

// DispatchPayload is the webhook body sent for a recognized face.
type DispatchPayload struct {
	Event     string    `json:"event"`
	StudentID string    `json:"student_id"`
	Distance  *float64  `json:"distance"`
	TS        int64     `json:"ts"`
	FrameInfo FrameInfo `json:"frame_info"`
	Box       Box       `json:"box"`
}

// Websocket message types pushed to live subscribers.
const (
	MessageRecognized      = "recognized"
	MessageStudentEnrolled = "student.enrolled"
)

// RecognizedMessage is broadcast to subscribers for each dispatched face.
type RecognizedMessage struct {
	Type      string   `json:"type"`
	StudentID string   `json:"student_id"`
	Distance  *float64 `json:"distance"`
	TS        int64    `json:"ts"`
	Dispatch  any      `json:"dispatch"`
}

// EnrolledMessage is broadcast when a student gains new reference vectors.
type EnrolledMessage struct {
	Type      string `json:"type"`
	StudentID string `json:"student_id"`
	Saved     int    `json:"saved"`
}
