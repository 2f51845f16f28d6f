package entity

import (
	"encoding/json"
)

// Lead is a sales prospect as the CRM backend returns it.
// The console never mutates it locally.
type Lead struct {
	ID                 string        `json:"_id"`
	CompanyName        string        `json:"company_name"`
	Sector             string        `json:"sector"`
	Status             string        `json:"status"`
	Email              string        `json:"email,omitempty"`
	MobileNumber       string        `json:"mobile_number,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	AssignedTo         string        `json:"assigned_to"`
	CreatedBy          string        `json:"created_by,omitempty"`
	NextFollowUpDate   *Timestamp    `json:"next_follow_up_date"`
	InteractionHistory []Interaction `json:"interaction_history,omitempty"`
	CreatedAt          *Timestamp    `json:"created_at,omitempty"`
	UpdatedAt          *Timestamp    `json:"updated_at,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id" for the identifier.
func (l *Lead) UnmarshalJSON(data []byte) error {
	type plain Lead
	aux := struct {
		*plain
		AltID string `json:"id"`
	}{plain: (*plain)(l)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = aux.AltID
	}
	return nil
}

// HasFollowUp reports whether the lead carries a usable follow-up date.
func (l Lead) HasFollowUp() bool {
	return l.NextFollowUpDate != nil && !l.NextFollowUpDate.IsZero()
}

type Interaction struct {
	Timestamp *Timestamp `json:"timestamp"`
	Action    string     `json:"action"`
	Notes     *string    `json:"notes"`
}

// LeadInput carries the fields sent on create and update.
// Empty fields are left out so an update only touches what was set.
type LeadInput struct {
	CompanyName      string     `json:"company_name,omitempty"`
	Sector           string     `json:"sector,omitempty"`
	Status           string     `json:"status,omitempty"`
	Email            string     `json:"email,omitempty"`
	MobileNumber     string     `json:"mobile_number,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	AssignedTo       string     `json:"assigned_to,omitempty"`
	NextFollowUpDate *Timestamp `json:"next_follow_up_date,omitempty"`
}

type LeadList struct {
	Leads []Lead `json:"leads"`
	Total int    `json:"total"`
	Skip  int    `json:"skip"`
	Limit int    `json:"limit"`
}

type DeleteResult struct {
	Message string `json:"message"`
}
