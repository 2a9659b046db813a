package model

import "time"

type SenderType string

const (
	SenderStudent SenderType = "student"
	SenderTeacher SenderType = "teacher"
)

type Message struct {
	ID            int64      `json:"id"`
	AppointmentID int64      `json:"appointment_id"`
	SenderID      int64      `json:"sender_id"`
	SenderType    SenderType `json:"sender_type"`
	Body          string     `json:"message"`
	Timestamp     time.Time  `json:"timestamp"`
}
