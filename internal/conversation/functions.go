package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Function names exposed to the LLM.
const (
	FnCreateReservation   = "create_pharmacy_reservation"
	FnCreateClinicVisit   = "create_clinic_visit"
	FnGetVisitHistory     = "get_visit_history"
	FnSearchOrganizations = "search_organizations"
	FnGetPlannedVisits    = "get_planned_visits"
	FnGetDrugStock        = "get_drug_stock"
)

// ErrBadArguments marks a structured call whose JSON arguments failed to
// parse or were missing required keys. Treated as an upstream failure since
// it means the LLM mis-formed its output.
var ErrBadArguments = errors.New("conversation: malformed function arguments")

// functionDefinitions is the fixed schema catalog sent with every LLM call.
func functionDefinitions() []openai.FunctionDefinition {
	return []openai.FunctionDefinition{
		{
			Name:        FnCreateReservation,
			Description: "Создать бронь препаратов для аптеки. Вызывай, когда пользователь хочет оформить бронь или заказ для аптеки.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"pharmacyName": {Type: jsonschema.String, Description: "Название аптеки, как его назвал пользователь"},
					"drugs": {
						Type:        jsonschema.Array,
						Description: "Препараты и количества для брони",
						Items: &jsonschema.Definition{
							Type: jsonschema.Object,
							Properties: map[string]jsonschema.Definition{
								"drugName": {Type: jsonschema.String},
								"quantity": {Type: jsonschema.Number},
							},
							Required: []string{"drugName", "quantity"},
						},
					},
					"prepaymentPercent": {Type: jsonschema.Number, Description: "Процент предоплаты, если пользователь его назвал"},
					"paymentType":       {Type: jsonschema.String, Enum: []string{"cash", "transfer"}},
					"comment":           {Type: jsonschema.String},
				},
				Required: []string{"pharmacyName", "drugs"},
			},
		},
		{
			Name:        FnCreateClinicVisit,
			Description: "Зафиксировать визит в поликлинику или к врачу.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"clinicName":     {Type: jsonschema.String, Description: "Название поликлиники"},
					"doctorName":     {Type: jsonschema.String, Description: "ФИО врача, если назван"},
					"discussedDrugs": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
					"latitude":       {Type: jsonschema.Number},
					"longitude":      {Type: jsonschema.Number},
					"comment":        {Type: jsonschema.String},
				},
				Required: []string{"clinicName"},
			},
		},
		{
			Name:        FnGetVisitHistory,
			Description: "Показать историю визитов с фильтрами по типу и организации.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"visitType":        {Type: jsonschema.String, Enum: []string{"PHARMACY", "CLINIC"}},
					"organizationName": {Type: jsonschema.String},
					"page":             {Type: jsonschema.Integer},
				},
			},
		},
		{
			Name:        FnSearchOrganizations,
			Description: "Найти организацию (аптеку или поликлинику) по названию.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"organizationName": {Type: jsonschema.String},
				},
				Required: []string{"organizationName"},
			},
		},
		{
			Name:        FnGetPlannedVisits,
			Description: "Показать запланированные визиты на дату или на неделю.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"date":     {Type: jsonschema.String, Description: "Дата в формате ГГГГ-ММ-ДД; пусто — сегодня"},
					"viewType": {Type: jsonschema.String, Enum: []string{"day", "week"}},
				},
			},
		},
		{
			Name:        FnGetDrugStock,
			Description: "Проверить остаток и цену препарата на складе.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"drugName": {Type: jsonschema.String},
				},
			},
		},
	}
}

type reservationDrugArg struct {
	DrugName string  `json:"drugName"`
	Quantity float64 `json:"quantity"`
}

type reservationArgs struct {
	PharmacyName      string               `json:"pharmacyName"`
	Drugs             []reservationDrugArg `json:"drugs"`
	PrepaymentPercent *float64             `json:"prepaymentPercent"`
	PaymentType       string               `json:"paymentType"`
	Comment           string               `json:"comment"`
}

type clinicVisitArgs struct {
	ClinicName     string   `json:"clinicName"`
	DoctorName     string   `json:"doctorName"`
	DiscussedDrugs []string `json:"discussedDrugs"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Comment        string   `json:"comment"`
}

type visitHistoryArgs struct {
	VisitType        string `json:"visitType"`
	OrganizationName string `json:"organizationName"`
	Page             int    `json:"page"`
}

type searchOrganizationsArgs struct {
	OrganizationName string `json:"organizationName"`
}

type plannedVisitsArgs struct {
	Date     string `json:"date"`
	ViewType string `json:"viewType"`
}

type drugStockArgs struct {
	DrugName string `json:"drugName"`
}

// decodeArgs parses the raw argument JSON into a typed record. Schema
// mismatches surface as ErrBadArguments, never as silent coercion.
func decodeArgs[T any](raw string) (T, error) {
	var v T
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	return v, nil
}
