// internal/models/appointment.go
package models

import "time"

const (
	AppointmentStatusConfirmed   = "confirmed"
	AppointmentStatusCancelled   = "cancelled"
	AppointmentStatusRescheduled = "rescheduled"
	AppointmentStatusNoShow      = "no_show"
)

type Appointment struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenantId"`
	UserID    string                 `json:"userId,omitempty"`
	Status    string                 `json:"status"`
	StartTime time.Time              `json:"startTime"`
	Data      map[string]interface{} `json:"appointmentData,omitempty"`
}

// PostAppointmentStats counts conversation outcomes about existing appointments.
type PostAppointmentStats struct {
	Rescheduled int `json:"appointmentRescheduled"`
	Cancelled   int `json:"appointmentCancelled"`
	Confirmed   int `json:"appointmentConfirmed"`
	Inquiry     int `json:"appointmentInquiry"`
	Modified    int `json:"appointmentModified"`
	Total       int `json:"totalPostAppointment"`
}
