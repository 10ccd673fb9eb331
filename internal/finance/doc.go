// Package finance provides typed access to the finance backend's CRUD resources
// (accounts, transactions, DDS articles, workspaces, counterparties, contracts,
// budgets, payment calendar) and reports.
//
// All calls go through an apiclient.Client, so authentication, token refresh and
// error normalization are handled below this package.
package finance
