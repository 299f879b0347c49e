package crm

import "time"

// Organization is a pharmacy or clinic registered in the distributor CRM.
type Organization struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	INN     string `json:"inn"`
	Address string `json:"address"`
	Region  string `json:"region"`
}

// PriceListItem is one drug position with on-hand balance and price.
type PriceListItem struct {
	DrugID   int64   `json:"drugId"`
	DrugName string  `json:"drugName"`
	Producer string  `json:"producer"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// CompanyDrug is a drug in the company's own promotional list.
type CompanyDrug struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// MarginOption is a valid prepayment percentage offered by the distributor.
type MarginOption struct {
	ID      int64   `json:"id"`
	Percent float64 `json:"percent"`
	Name    string  `json:"name"`
}

// Doctor works at a clinic organization.
type Doctor struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullName"`
	Specialty string `json:"specialty"`
}

// VisitType discriminates pharmacy reservations from clinic visits.
type VisitType string

const (
	VisitTypePharmacy VisitType = "PHARMACY"
	VisitTypeClinic   VisitType = "CLINIC"
)

// VisitDrug is one drug line attached to a visit.
type VisitDrug struct {
	DrugID   int64   `json:"drugId"`
	DrugName string  `json:"drugName"`
	Quantity float64 `json:"quantity"`
}

// CreateVisitRequest creates either a pharmacy reservation or a clinic visit.
type CreateVisitRequest struct {
	VisitType         VisitType   `json:"visitType"`
	OrganizationID    int64       `json:"organizationId"`
	DoctorID          *int64      `json:"doctorId,omitempty"`
	Drugs             []VisitDrug `json:"drugs,omitempty"`
	PrepaymentPercent *float64    `json:"prepaymentPercent,omitempty"`
	PaymentType       string      `json:"paymentType,omitempty"`
	Comment           string      `json:"comment,omitempty"`
	Latitude          *float64    `json:"latitude,omitempty"`
	Longitude         *float64    `json:"longitude,omitempty"`
}

// Visit is a created or historical visit record.
type Visit struct {
	ID               int64     `json:"id"`
	VisitType        VisitType `json:"visitType"`
	OrganizationName string    `json:"organizationName"`
	DoctorName       string    `json:"doctorName,omitempty"`
	Date             time.Time `json:"date"`
	Status           string    `json:"status"`
	Comment          string    `json:"comment,omitempty"`
}

// VisitHistoryFilter narrows a paginated history query.
type VisitHistoryFilter struct {
	VisitType        VisitType
	OrganizationName string
	DateFrom         *time.Time
	DateTo           *time.Time
	Page             int
	PageSize         int
}

// VisitHistoryPage is one page of visit history.
type VisitHistoryPage struct {
	Items      []Visit `json:"items"`
	Page       int     `json:"page"`
	TotalPages int     `json:"totalPages"`
	TotalCount int     `json:"totalCount"`
}

// PlannedVisit is a visit scheduled for a future date.
type PlannedVisit struct {
	ID               int64     `json:"id"`
	OrganizationName string    `json:"organizationName"`
	VisitType        VisitType `json:"visitType"`
	PlannedDate      time.Time `json:"plannedDate"`
	Address          string    `json:"address"`
}
