package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bekzodov/meddist-ai-assistant/internal/crm"
	"github.com/bekzodov/meddist-ai-assistant/internal/matching"
	"github.com/bekzodov/meddist-ai-assistant/pkg/logging"
)

// CRMClient is the slice of the CRM surface the business operations consume.
type CRMClient interface {
	SearchOrganizations(ctx context.Context, query string) ([]crm.Organization, error)
	GetMarginOptions(ctx context.Context) ([]crm.MarginOption, error)
	CreateVisit(ctx context.Context, req crm.CreateVisitRequest) (*crm.Visit, error)
	GetDoctors(ctx context.Context, organizationID int64) ([]crm.Doctor, error)
	GetVisitHistory(ctx context.Context, filter crm.VisitHistoryFilter) (*crm.VisitHistoryPage, error)
	GetVisitCountsByDate(ctx context.Context, year int, month time.Month) (map[string]int, error)
	GetPlannedVisits(ctx context.Context, date time.Time) ([]crm.PlannedVisit, error)
}

// Catalogs serves the cached price list and company drug list.
type Catalogs interface {
	PriceList(ctx context.Context) ([]crm.PriceListItem, error)
	CompanyDrugs(ctx context.Context) ([]crm.CompanyDrug, error)
}

const msgCRMUnavailable = "Извините, не удалось связаться с системой. Попробуйте повторить запрос позже."

// OperationsConfig tunes entity resolution inside the operations.
type OperationsConfig struct {
	MatchThreshold      int
	SuggestionThreshold int
	MaxSuggestions      int
}

func (c *OperationsConfig) defaults() {
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = matching.DefaultThreshold
	}
	if c.SuggestionThreshold <= 0 {
		c.SuggestionThreshold = 50
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = 5
	}
}

// Operations executes the structured functions the LLM selects. Every
// operation owns its slot-filling policy and catches its own collaborator
// errors, returning user-facing text instead of propagating them.
type Operations struct {
	crm      CRMClient
	catalogs Catalogs
	store    *ContextStore
	logger   *logging.Logger
	cfg      OperationsConfig
}

// NewOperations wires the business operations.
func NewOperations(crmClient CRMClient, catalogs Catalogs, store *ContextStore, logger *logging.Logger, cfg OperationsConfig) *Operations {
	if crmClient == nil {
		panic("conversation: crm client cannot be nil")
	}
	if catalogs == nil {
		panic("conversation: catalogs cannot be nil")
	}
	if store == nil {
		panic("conversation: context store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.defaults()
	return &Operations{
		crm:      crmClient,
		catalogs: catalogs,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

// Dispatch routes a structured function call by name. It returns an error
// only for unknown functions or malformed arguments; business failures come
// back as user-facing text.
func (o *Operations) Dispatch(ctx context.Context, sessionID, name, rawArgs string) (string, error) {
	switch name {
	case FnCreateReservation:
		return o.createReservation(ctx, sessionID, rawArgs)
	case FnCreateClinicVisit:
		return o.createClinicVisit(ctx, sessionID, rawArgs)
	case FnGetVisitHistory:
		return o.getVisitHistory(ctx, rawArgs)
	case FnSearchOrganizations:
		return o.searchOrganizations(ctx, rawArgs)
	case FnGetPlannedVisits:
		return o.getPlannedVisits(ctx, rawArgs)
	case FnGetDrugStock:
		return o.getDrugStock(ctx, rawArgs)
	default:
		return "", fmt.Errorf("conversation: unknown function %q", name)
	}
}

func (o *Operations) createReservation(ctx context.Context, sessionID, rawArgs string) (string, error) {
	args, err := decodeArgs[reservationArgs](rawArgs)
	if err != nil {
		return "", err
	}

	// Merge values collected on earlier turns of the same operation.
	if pending := o.store.Pending(sessionID); pending != nil && pending.Type == FnCreateReservation {
		if args.PharmacyName == "" {
			args.PharmacyName, _ = pending.Parameters["pharmacyName"].(string)
		}
		if len(args.Drugs) == 0 {
			if drugs, ok := pending.Parameters["drugs"].([]reservationDrugArg); ok {
				args.Drugs = drugs
			}
		}
		if args.PrepaymentPercent == nil {
			if pct, ok := pending.Parameters["prepaymentPercent"].(float64); ok {
				args.PrepaymentPercent = &pct
			}
		}
		if args.PaymentType == "" {
			args.PaymentType, _ = pending.Parameters["paymentType"].(string)
		}
		if args.Comment == "" {
			args.Comment, _ = pending.Parameters["comment"].(string)
		}
	}

	if strings.TrimSpace(args.PharmacyName) == "" {
		question := "Для какой аптеки оформить бронь?"
		o.store.SetPending(sessionID, &PendingOperation{
			Type:         FnCreateReservation,
			Parameters:   reservationParams(args),
			Missing:      []string{"pharmacyName"},
			NextQuestion: question,
			CreatedAt:    time.Now(),
		})
		return question, nil
	}
	if len(args.Drugs) == 0 {
		question := "Какие препараты и в каком количестве добавить в бронь?"
		o.store.SetPending(sessionID, &PendingOperation{
			Type:         FnCreateReservation,
			Parameters:   reservationParams(args),
			Missing:      []string{"drugs"},
			NextQuestion: question,
			CreatedAt:    time.Now(),
		})
		return question, nil
	}

	org, reply, ok := o.resolveOrganization(ctx, args.PharmacyName, "аптеку")
	if !ok {
		return reply, nil
	}

	priceList, err := o.catalogs.PriceList(ctx)
	if err != nil {
		o.logger.Error("price list unavailable", "error", err)
		return msgCRMUnavailable, nil
	}
	priceNames := make([]string, len(priceList))
	for i, item := range priceList {
		priceNames[i] = item.DrugName
	}

	var lines []crm.VisitDrug
	var total float64
	for _, d := range args.Drugs {
		m, found := matching.BestMatch(d.DrugName, priceNames, o.cfg.MatchThreshold)
		if !found {
			return o.notFoundWithSuggestions("препарат", d.DrugName, priceNames), nil
		}
		item := priceList[m.Index]
		if item.Quantity < d.Quantity {
			return fmt.Sprintf("Препарата «%s» недостаточно на складе: запрошено %s, в наличии %s.",
				item.DrugName, formatQty(d.Quantity), formatQty(item.Quantity)), nil
		}
		lines = append(lines, crm.VisitDrug{DrugID: item.DrugID, DrugName: item.DrugName, Quantity: d.Quantity})
		total += item.Price * d.Quantity
	}

	margins, err := o.crm.GetMarginOptions(ctx)
	if err != nil {
		o.logger.Error("margin options unavailable", "error", err)
		return msgCRMUnavailable, nil
	}
	if args.PrepaymentPercent == nil {
		question := "Какой процент предоплаты? Доступные варианты: " + formatMargins(margins)
		params := reservationParams(args)
		params["pharmacyName"] = org.Name
		o.store.SetPending(sessionID, &PendingOperation{
			Type:         FnCreateReservation,
			Parameters:   params,
			Missing:      []string{"prepaymentPercent"},
			NextQuestion: question,
			CreatedAt:    time.Now(),
		})
		return question, nil
	}
	if !validMargin(margins, *args.PrepaymentPercent) {
		return "Такой процент предоплаты недоступен. Доступные варианты: " + formatMargins(margins), nil
	}

	visit, err := o.crm.CreateVisit(ctx, crm.CreateVisitRequest{
		VisitType:         crm.VisitTypePharmacy,
		OrganizationID:    org.ID,
		Drugs:             lines,
		PrepaymentPercent: args.PrepaymentPercent,
		PaymentType:       args.PaymentType,
		Comment:           args.Comment,
	})
	if err != nil {
		o.logger.Error("failed to create reservation", "error", err, "organization_id", org.ID)
		return msgCRMUnavailable, nil
	}
	o.store.CompletePending(sessionID)

	var b strings.Builder
	fmt.Fprintf(&b, "Бронь №%d для «%s» создана.\n", visit.ID, org.Name)
	for _, l := range lines {
		fmt.Fprintf(&b, "• %s — %s уп.\n", l.DrugName, formatQty(l.Quantity))
	}
	fmt.Fprintf(&b, "Сумма: %s сум, предоплата %s%%.", formatQty(total), formatQty(*args.PrepaymentPercent))
	return b.String(), nil
}

func (o *Operations) createClinicVisit(ctx context.Context, sessionID, rawArgs string) (string, error) {
	args, err := decodeArgs[clinicVisitArgs](rawArgs)
	if err != nil {
		return "", err
	}

	if pending := o.store.Pending(sessionID); pending != nil && pending.Type == FnCreateClinicVisit {
		if args.ClinicName == "" {
			args.ClinicName, _ = pending.Parameters["clinicName"].(string)
		}
		if len(args.DiscussedDrugs) == 0 {
			if drugs, ok := pending.Parameters["discussedDrugs"].([]string); ok {
				args.DiscussedDrugs = drugs
			}
		}
		if args.DoctorName == "" {
			args.DoctorName, _ = pending.Parameters["doctorName"].(string)
		}
	}

	if strings.TrimSpace(args.ClinicName) == "" {
		question := "В какую поликлинику был визит?"
		o.store.SetPending(sessionID, &PendingOperation{
			Type:         FnCreateClinicVisit,
			Parameters:   clinicParams(args),
			Missing:      []string{"clinicName"},
			NextQuestion: question,
			CreatedAt:    time.Now(),
		})
		return question, nil
	}

	org, reply, ok := o.resolveOrganization(ctx, args.ClinicName, "поликлинику")
	if !ok {
		return reply, nil
	}

	if len(args.DiscussedDrugs) == 0 {
		question := "Какие препараты обсуждали на визите?"
		params := clinicParams(args)
		params["clinicName"] = org.Name
		o.store.SetPending(sessionID, &PendingOperation{
			Type:         FnCreateClinicVisit,
			Parameters:   params,
			Missing:      []string{"discussedDrugs"},
			NextQuestion: question,
			CreatedAt:    time.Now(),
		})
		return question, nil
	}

	var doctorID *int64
	doctorNote := ""
	if strings.TrimSpace(args.DoctorName) != "" {
		doctors, err := o.crm.GetDoctors(ctx, org.ID)
		if err != nil {
			o.logger.Error("doctor list unavailable", "error", err, "organization_id", org.ID)
			return msgCRMUnavailable, nil
		}
		names := make([]string, len(doctors))
		for i, d := range doctors {
			names[i] = d.FullName
		}
		if m, found := matching.BestMatch(args.DoctorName, names, o.cfg.MatchThreshold); found {
			doctorID = &doctors[m.Index].ID
			doctorNote = doctors[m.Index].FullName
		} else {
			doctorNote = args.DoctorName + " (не найден в списке врачей)"
		}
	}

	companyDrugs, err := o.catalogs.CompanyDrugs(ctx)
	if err != nil {
		o.logger.Error("company drugs unavailable", "error", err)
		return msgCRMUnavailable, nil
	}
	drugNames := make([]string, len(companyDrugs))
	for i, d := range companyDrugs {
		drugNames[i] = d.Name
	}

	var lines []crm.VisitDrug
	var discussed []string
	for _, name := range args.DiscussedDrugs {
		if m, found := matching.BestMatch(name, drugNames, o.cfg.MatchThreshold); found {
			d := companyDrugs[m.Index]
			lines = append(lines, crm.VisitDrug{DrugID: d.ID, DrugName: d.Name})
			discussed = append(discussed, d.Name)
		} else {
			discussed = append(discussed, name)
		}
	}

	visit, err := o.crm.CreateVisit(ctx, crm.CreateVisitRequest{
		VisitType:      crm.VisitTypeClinic,
		OrganizationID: org.ID,
		DoctorID:       doctorID,
		Drugs:          lines,
		Comment:        args.Comment,
		Latitude:       args.Latitude,
		Longitude:      args.Longitude,
	})
	if err != nil {
		o.logger.Error("failed to create clinic visit", "error", err, "organization_id", org.ID)
		return msgCRMUnavailable, nil
	}
	o.store.CompletePending(sessionID)

	var b strings.Builder
	fmt.Fprintf(&b, "Визит №%d в «%s» зафиксирован.", visit.ID, org.Name)
	if doctorNote != "" {
		fmt.Fprintf(&b, "\nВрач: %s.", doctorNote)
	}
	if len(discussed) > 0 {
		fmt.Fprintf(&b, "\nОбсуждали: %s.", strings.Join(discussed, ", "))
	}
	return b.String(), nil
}

// resolveOrganization searches the CRM and fuzzy-matches the name. The third
// return is false when the caller should reply with the given text instead.
func (o *Operations) resolveOrganization(ctx context.Context, name, kind string) (crm.Organization, string, bool) {
	orgs, err := o.crm.SearchOrganizations(ctx, name)
	if err != nil {
		o.logger.Error("organization search failed", "error", err, "query", name)
		return crm.Organization{}, msgCRMUnavailable, false
	}
	names := make([]string, len(orgs))
	for i, org := range orgs {
		names[i] = org.Name
	}
	m, found := matching.BestMatch(name, names, o.cfg.MatchThreshold)
	if !found {
		return crm.Organization{}, o.notFoundWithSuggestions(kind, name, names), false
	}
	return orgs[m.Index], "", true
}

func (o *Operations) notFoundWithSuggestions(kind, query string, names []string) string {
	similar := matching.SearchSimilar(query, names, o.cfg.SuggestionThreshold, o.cfg.MaxSuggestions)
	if len(similar) == 0 {
		return fmt.Sprintf("Не нашёл %s «%s».", kind, query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Не нашёл %s «%s». Возможно, вы имели в виду:\n", kind, query)
	for _, m := range similar {
		fmt.Fprintf(&b, "• %s\n", names[m.Index])
	}
	return strings.TrimRight(b.String(), "\n")
}

func reservationParams(args reservationArgs) map[string]any {
	params := map[string]any{}
	if args.PharmacyName != "" {
		params["pharmacyName"] = args.PharmacyName
	}
	if len(args.Drugs) > 0 {
		params["drugs"] = args.Drugs
	}
	if args.PrepaymentPercent != nil {
		params["prepaymentPercent"] = *args.PrepaymentPercent
	}
	if args.PaymentType != "" {
		params["paymentType"] = args.PaymentType
	}
	if args.Comment != "" {
		params["comment"] = args.Comment
	}
	return params
}

func clinicParams(args clinicVisitArgs) map[string]any {
	params := map[string]any{}
	if args.ClinicName != "" {
		params["clinicName"] = args.ClinicName
	}
	if len(args.DiscussedDrugs) > 0 {
		params["discussedDrugs"] = args.DiscussedDrugs
	}
	if args.DoctorName != "" {
		params["doctorName"] = args.DoctorName
	}
	return params
}

func validMargin(margins []crm.MarginOption, percent float64) bool {
	for _, m := range margins {
		if m.Percent == percent {
			return true
		}
	}
	return false
}

func formatMargins(margins []crm.MarginOption) string {
	parts := make([]string, len(margins))
	for i, m := range margins {
		parts[i] = formatQty(m.Percent) + "%"
	}
	return strings.Join(parts, ", ")
}
