package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bekzodov/meddist-ai-assistant/internal/crm"
	"github.com/bekzodov/meddist-ai-assistant/internal/matching"
)

func (o *Operations) getVisitHistory(ctx context.Context, rawArgs string) (string, error) {
	args, err := decodeArgs[visitHistoryArgs](rawArgs)
	if err != nil {
		return "", err
	}
	if args.Page < 1 {
		args.Page = 1
	}

	page, err := o.crm.GetVisitHistory(ctx, crm.VisitHistoryFilter{
		VisitType:        crm.VisitType(args.VisitType),
		OrganizationName: args.OrganizationName,
		Page:             args.Page,
	})
	if err != nil {
		o.logger.Error("visit history unavailable", "error", err)
		return msgCRMUnavailable, nil
	}
	if len(page.Items) == 0 {
		return "Визитов по заданным условиям не найдено.", nil
	}

	var b strings.Builder
	b.WriteString("История визитов:\n")
	for _, v := range page.Items {
		fmt.Fprintf(&b, "• %s — %s (%s)", v.Date.Format("02.01.2006"), v.OrganizationName, visitTypeLabel(v.VisitType))
		if v.Status != "" {
			fmt.Fprintf(&b, ", %s", v.Status)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Страница %d из %d, всего визитов: %d.", page.Page, page.TotalPages, page.TotalCount)
	return b.String(), nil
}

func (o *Operations) searchOrganizations(ctx context.Context, rawArgs string) (string, error) {
	args, err := decodeArgs[searchOrganizationsArgs](rawArgs)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(args.OrganizationName) == "" {
		return "Укажите название организации для поиска.", nil
	}

	orgs, err := o.crm.SearchOrganizations(ctx, args.OrganizationName)
	if err != nil {
		o.logger.Error("organization search failed", "error", err, "query", args.OrganizationName)
		return msgCRMUnavailable, nil
	}
	if len(orgs) == 0 {
		return fmt.Sprintf("По запросу «%s» ничего не найдено.", args.OrganizationName), nil
	}

	names := make([]string, len(orgs))
	for i, org := range orgs {
		names[i] = org.Name
	}
	ranked := matching.SearchSimilar(args.OrganizationName, names, o.cfg.SuggestionThreshold, 10)
	if len(ranked) == 0 {
		// CRM returned candidates the resolver scored below the band; show
		// them in catalog order rather than hiding the result.
		for i := range orgs {
			ranked = append(ranked, matching.Match{Index: i})
			if len(ranked) == 10 {
				break
			}
		}
	}

	var b strings.Builder
	b.WriteString("Найденные организации:\n")
	for _, m := range ranked {
		org := orgs[m.Index]
		fmt.Fprintf(&b, "• %s", org.Name)
		if org.Address != "" {
			fmt.Fprintf(&b, " — %s", org.Address)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (o *Operations) getPlannedVisits(ctx context.Context, rawArgs string) (string, error) {
	args, err := decodeArgs[plannedVisitsArgs](rawArgs)
	if err != nil {
		return "", err
	}

	date := time.Now()
	if strings.TrimSpace(args.Date) != "" {
		parsed, parseErr := time.Parse("2006-01-02", args.Date)
		if parseErr != nil {
			return "Не понял дату. Укажите её в формате ГГГГ-ММ-ДД, например 2026-09-01.", nil
		}
		date = parsed
	}

	if args.ViewType == "week" {
		counts, err := o.crm.GetVisitCountsByDate(ctx, date.Year(), date.Month())
		if err != nil {
			o.logger.Error("visit counts unavailable", "error", err)
			return msgCRMUnavailable, nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "План визитов на неделю с %s:\n", date.Format("02.01.2006"))
		for i := 0; i < 7; i++ {
			day := date.AddDate(0, 0, i)
			count := counts[day.Format("2006-01-02")]
			fmt.Fprintf(&b, "• %s — %d визит(ов)\n", day.Format("02.01"), count)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}

	visits, err := o.crm.GetPlannedVisits(ctx, date)
	if err != nil {
		o.logger.Error("planned visits unavailable", "error", err)
		return msgCRMUnavailable, nil
	}
	if len(visits) == 0 {
		return fmt.Sprintf("На %s визитов не запланировано.", date.Format("02.01.2006")), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Запланированные визиты на %s:\n", date.Format("02.01.2006"))
	for _, v := range visits {
		fmt.Fprintf(&b, "• %s (%s)", v.OrganizationName, visitTypeLabel(v.VisitType))
		if v.Address != "" {
			fmt.Fprintf(&b, " — %s", v.Address)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (o *Operations) getDrugStock(ctx context.Context, rawArgs string) (string, error) {
	args, err := decodeArgs[drugStockArgs](rawArgs)
	if err != nil {
		return "", err
	}

	priceList, err := o.catalogs.PriceList(ctx)
	if err != nil {
		o.logger.Error("price list unavailable", "error", err)
		return msgCRMUnavailable, nil
	}

	if strings.TrimSpace(args.DrugName) == "" {
		inStock := 0
		for _, item := range priceList {
			if item.Quantity > 0 {
				inStock++
			}
		}
		return fmt.Sprintf("В прайс-листе %d позиций, из них %d в наличии. Назовите препарат, чтобы узнать остаток.",
			len(priceList), inStock), nil
	}

	names := make([]string, len(priceList))
	for i, item := range priceList {
		names[i] = item.DrugName
	}
	m, found := matching.BestMatch(args.DrugName, names, o.cfg.MatchThreshold)
	if !found {
		return o.notFoundWithSuggestions("препарат", args.DrugName, names), nil
	}

	item := priceList[m.Index]
	return fmt.Sprintf("%s: в наличии %s уп., цена %s сум.",
		item.DrugName, formatQty(item.Quantity), formatQty(item.Price)), nil
}

func visitTypeLabel(t crm.VisitType) string {
	switch t {
	case crm.VisitTypePharmacy:
		return "аптека"
	case crm.VisitTypeClinic:
		return "поликлиника"
	default:
		return string(t)
	}
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
