package domain

import "time"

// Ticket sources accepted by the importer.
const (
	SourceClarify      = "clarify"
	SourceJira         = "jira"
	SourceITSMChange   = "itsm_change"
	SourceITSMIncident = "itsm_incident"
)

var Sources = []string{SourceClarify, SourceJira, SourceITSMChange, SourceITSMIncident}

func IsKnownSource(s string) bool {
	for _, src := range Sources {
		if src == s {
			return true
		}
	}
	return false
}

type Ticket struct {
	BacklogID     string    `json:"backlog_id,omitempty"`
	ID            string    `json:"id"`
	Title         string    `json:"title,omitempty"`
	Status        string    `json:"status"`
	Severity      string    `json:"severity"`
	Owner         string    `json:"owner,omitempty"`
	Region        string    `json:"region,omitempty"`
	Company       string    `json:"company,omitempty"`
	City          string    `json:"city,omitempty"`
	Source        string    `json:"source,omitempty"`
	CreatedAt     time.Time `json:"created_at"`     // zero when missing in the export
	LastUpdatedAt time.Time `json:"last_updated_at"` // zero when missing in the export
}

type Backlog struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	CreatedBy   string    `json:"created_by"`
	TicketCount int       `json:"ticket_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AlertRun records one execution of the overdue notifier for a backlog.
type AlertRun struct {
	ID           string    `json:"id"`
	BacklogID    string    `json:"backlog_id"`
	TriggeredBy  string    `json:"triggered_by"` // username or "scheduler"
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	OverdueCount int       `json:"overdue_count"`
	RanAt        time.Time `json:"ran_at"`
}
