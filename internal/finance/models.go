package finance

import (
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ArticleType classifies a DDS (cash-flow) article.
type ArticleType string

const (
	ArticleTypeIncome  ArticleType = "income"
	ArticleTypeExpense ArticleType = "expense"
	ArticleTypeGroup   ArticleType = "group"
)

// TransactionType is the direction of money movement.
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Workspace is a tenant partition; every other resource belongs to one.
type Workspace struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Account is a bank account, cash desk or card holding money.
type Account struct {
	ID             int     `json:"id"`
	WorkspaceID    int     `json:"workspace_id"`
	Name           string  `json:"name"`
	Currency       string  `json:"currency"`
	InitialBalance float64 `json:"initial_balance"`
	Balance        float64 `json:"balance"`
	IsArchived     bool    `json:"is_archived"`
}

// DDSArticle is a cash-flow classification category.
type DDSArticle struct {
	ID          int         `json:"id"`
	WorkspaceID int         `json:"workspace_id"`
	Name        string      `json:"name"`
	Type        ArticleType `json:"type"`
	ParentID    *int        `json:"parent_id,omitempty"`
}

// Transaction is a single money movement tagged with a DDS article.
type Transaction struct {
	ID             int                `json:"id"`
	WorkspaceID    int                `json:"workspace_id"`
	AccountID      int                `json:"account_id"`
	ToAccountID    *int               `json:"to_account_id,omitempty"`
	ArticleID      *int               `json:"dds_article_id,omitempty"`
	CounterpartyID *int               `json:"counterparty_id,omitempty"`
	ContractID     *int               `json:"contract_id,omitempty"`
	Type           TransactionType    `json:"type"`
	Amount         float64            `json:"amount"`
	Date           openapi_types.Date `json:"date"`
	Description    string             `json:"description,omitempty"`
	IsPlanned      bool               `json:"is_planned"`
}

// Counterparty is a customer, supplier or other party money moves to or from.
type Counterparty struct {
	ID          int    `json:"id"`
	WorkspaceID int    `json:"workspace_id"`
	Name        string `json:"name"`
	TaxID       string `json:"inn,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// Contract is an agreement with a counterparty.
type Contract struct {
	ID             int                 `json:"id"`
	WorkspaceID    int                 `json:"workspace_id"`
	CounterpartyID int                 `json:"counterparty_id"`
	Number         string              `json:"number"`
	Date           openapi_types.Date  `json:"date"`
	ValidUntil     *openapi_types.Date `json:"valid_until,omitempty"`
	Amount         float64             `json:"amount"`
}

// Budget is a planned amount for an article over a period.
type Budget struct {
	ID          int                `json:"id"`
	WorkspaceID int                `json:"workspace_id"`
	ArticleID   int                `json:"dds_article_id"`
	PeriodStart openapi_types.Date `json:"period_start"`
	PeriodEnd   openapi_types.Date `json:"period_end"`
	Amount      float64            `json:"amount"`
}

// PaymentCalendarEntry is a scheduled future payment.
type PaymentCalendarEntry struct {
	ID             int                `json:"id"`
	WorkspaceID    int                `json:"workspace_id"`
	AccountID      int                `json:"account_id"`
	ArticleID      *int               `json:"dds_article_id,omitempty"`
	CounterpartyID *int               `json:"counterparty_id,omitempty"`
	Type           TransactionType    `json:"type"`
	Amount         float64            `json:"amount"`
	Date           openapi_types.Date `json:"date"`
	Description    string             `json:"description,omitempty"`
}

// ReportRow is one article line of a report with per-period amounts keyed by period label.
type ReportRow struct {
	ArticleID   *int               `json:"article_id,omitempty"`
	ArticleName string             `json:"article_name"`
	Type        ArticleType        `json:"type,omitempty"`
	Total       float64            `json:"total"`
	Periods     map[string]float64 `json:"periods,omitempty"`
}

// Report is the payload shared by the cash-flow and profit-and-loss reports.
type Report struct {
	DateFrom openapi_types.Date `json:"date_from"`
	DateTo   openapi_types.Date `json:"date_to"`
	Rows     []ReportRow        `json:"rows"`
	Total    float64            `json:"total"`
}
