package models

type Service struct {
	ServiceID    string `json:"service_id"`
	DepartmentID string `json:"department_id"`
	CompanyID    string `json:"company_id,omitempty"`
	Name         string `json:"name"`
	AvgMinutes   int    `json:"avg_minutes"`
	Active       bool   `json:"active"`
}

type Department struct {
	DepartmentID string `json:"department_id"`
	CompanyID    string `json:"company_id,omitempty"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	WaitingCount int    `json:"waiting_count"`
}
