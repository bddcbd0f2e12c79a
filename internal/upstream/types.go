package upstream

import "time"

// Contact is a CRM contact record.
type Contact struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	AccountName string `json:"account_name"`
	Company     string `json:"company"`
}

// ContactFields carries the writable contact attributes.
type ContactFields struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
}

// Lead is a CRM lead record.
type Lead struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadFields carries the writable lead attributes.
type LeadFields struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Message string `json:"message,omitempty"`
}

// Project is a project record scoped to one account.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	OwnerName string    `json:"owner_name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectFields carries the writable project attributes.
type ProjectFields struct {
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Invoice is a billing record scoped to one account.
type Invoice struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	Status   string    `json:"status"`
	Currency string    `json:"currency"`
	Total    float64   `json:"total"`
	Balance  float64   `json:"balance"`
	DueDate  time.Time `json:"due_date"`
}

// FileRef points at a stored document.
type FileRef struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   time.Time `json:"created_at"`
}
