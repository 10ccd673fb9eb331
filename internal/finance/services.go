package finance

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// ReportKind selects a report endpoint.
type ReportKind string

const (
	ReportCashFlow   ReportKind = "cash-flow"
	ReportProfitLoss ReportKind = "profit-loss"
)

// Services bundles the typed resources of the finance API.
type Services struct {
	Workspaces      Resource[Workspace]
	Accounts        Resource[Account]
	Transactions    Resource[Transaction]
	DDSArticles     Resource[DDSArticle]
	Counterparties  Resource[Counterparty]
	Contracts       Resource[Contract]
	Budgets         Resource[Budget]
	PaymentCalendar Resource[PaymentCalendarEntry]

	client Doer
}

// NewServices creates all resource services on top of client.
func NewServices(client Doer) *Services {
	return &Services{
		Workspaces:      NewResource[Workspace](client, "workspaces/"),
		Accounts:        NewResource[Account](client, "accounts/"),
		Transactions:    NewResource[Transaction](client, "transactions/"),
		DDSArticles:     NewResource[DDSArticle](client, "dds-articles/"),
		Counterparties:  NewResource[Counterparty](client, "counterparties/"),
		Contracts:       NewResource[Contract](client, "contracts/"),
		Budgets:         NewResource[Budget](client, "budgets/"),
		PaymentCalendar: NewResource[PaymentCalendarEntry](client, "payment-calendar/"),
		client:          client,
	}
}

// Fetchers returns the resources keyed by their CLI name.
func (s *Services) Fetchers() map[string]Fetcher {
	return map[string]Fetcher{
		"workspaces":       s.Workspaces,
		"accounts":         s.Accounts,
		"transactions":     s.Transactions,
		"dds-articles":     s.DDSArticles,
		"counterparties":   s.Counterparties,
		"contracts":        s.Contracts,
		"budgets":          s.Budgets,
		"payment-calendar": s.PaymentCalendar,
	}
}

// Lookup returns the resource registered under name.
func (s *Services) Lookup(name string) (Fetcher, error) {
	f, ok := s.Fetchers()[name]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q (available: %v)", name, ResourceNames())
	}
	return f, nil
}

// ResourceNames lists the resource names accepted by Lookup in sorted order.
func ResourceNames() []string {
	names := make([]string, 0, 8)
	for name := range (&Services{}).Fetchers() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Report fetches a report for the period and scope described by filter.
func (s *Services) Report(ctx context.Context, kind ReportKind, filter Filter) (*Report, error) {
	switch kind {
	case ReportCashFlow, ReportProfitLoss:
	default:
		return nil, fmt.Errorf("unknown report %q", kind)
	}

	params, err := filter.Values()
	if err != nil {
		return nil, err
	}

	var report Report
	if err := s.client.Do(ctx, http.MethodGet, "reports/"+string(kind), nil, params, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
