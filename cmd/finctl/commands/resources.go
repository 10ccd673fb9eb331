package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/finctl/internal/finance"
)

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "workspace", Usage: "filter by workspace id"},
		&cli.IntFlag{Name: "account", Usage: "filter by account id"},
		&cli.IntFlag{Name: "article", Usage: "filter by DDS article id"},
		&cli.IntFlag{Name: "counterparty", Usage: "filter by counterparty id"},
		&cli.StringFlag{Name: "from", Usage: "start date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "to", Usage: "end date (YYYY-MM-DD)"},
		&cli.IntFlag{Name: "skip", Usage: "number of items to skip"},
		&cli.IntFlag{Name: "limit", Usage: "maximum number of items"},
	}
}

// filterFromFlags builds a Filter from the flags the user actually set.
func filterFromFlags(cmd *cli.Command) (finance.Filter, error) {
	var f finance.Filter

	intFlag := func(name string) *int {
		if !cmd.IsSet(name) {
			return nil
		}
		v := int(cmd.Int(name))
		return &v
	}
	f.WorkspaceID = intFlag("workspace")
	f.AccountID = intFlag("account")
	f.ArticleID = intFlag("article")
	f.CounterpartyID = intFlag("counterparty")
	f.Skip = intFlag("skip")
	f.Limit = intFlag("limit")

	var err error
	if f.DateFrom, err = dateFlag(cmd, "from"); err != nil {
		return f, err
	}
	if f.DateTo, err = dateFlag(cmd, "to"); err != nil {
		return f, err
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(f.DateFrom.Time) {
		return f, fmt.Errorf("--to must not be before --from")
	}
	return f, nil
}

func dateFlag(cmd *cli.Command, name string) (*openapi_types.Date, error) {
	raw := cmd.String(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(openapi_types.DateFormat, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, raw)
	}
	return &openapi_types.Date{Time: t}, nil
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "list a resource or fetch a single item",
		ArgsUsage: "<" + strings.Join(finance.ResourceNames(), "|") + "> [id]",
		Flags:     filterFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 1 || cmd.NArg() > 2 {
				return fmt.Errorf("usage: finctl get %s", cmd.ArgsUsage)
			}

			_, application, cleanup, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			resource, err := application.Finance.Lookup(cmd.Args().Get(0))
			if err != nil {
				return err
			}

			var id *int
			if cmd.NArg() == 2 {
				parsed, err := finance.ParseID(cmd.Args().Get(1))
				if err != nil {
					return err
				}
				id = &parsed
			}

			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}
			params, err := filter.Values()
			if err != nil {
				return err
			}

			result, err := resource.Fetch(ctx, id, params)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "fetch a financial report",
		ArgsUsage: "<cash-flow|profit-loss>",
		Flags:     filterFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("usage: finctl report %s", cmd.ArgsUsage)
			}

			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}

			_, application, cleanup, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := application.Finance.Report(ctx, finance.ReportKind(cmd.Args().First()), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(writer(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
