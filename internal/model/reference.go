package model

// Company is an existing company record from the reference snapshot.
type Company struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	City  string `json:"city,omitempty"`
}

// Contract is an existing contract record.
type Contract struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Branch is an existing branch record.
type Branch struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	City      string `json:"city,omitempty"`
}

// City is one gazetteer entry. Code is optional but unique when set.
type City struct {
	Name string `json:"name" yaml:"name"`
	Code string `json:"code,omitempty" yaml:"code"`
}

// Reference is the read-only snapshot validated against for one session.
type Reference struct {
	Companies []Company
	Contracts []Contract
	Branches  []Branch
}
