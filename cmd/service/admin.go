package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/contexor/contexor/app/core"
	v1 "github.com/contexor/contexor/app/logic/v1"
	"github.com/contexor/contexor/pkg/types"
)

// 运维命令只访问数据库，不初始化 AI 客户端
func setupAdminCore(opts *Options) *core.Core {
	return core.MustSetupCore(opts.loadConfig(), core.WithoutAI())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func NewInstallCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := setupAdminCore(opts)
			app.Shutdown()
			fmt.Println("install done")
			return nil
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func NewUsageCommand() *cobra.Command {
	var (
		opts   = &Options{}
		filter types.UsageFilter
		period string
	)
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "print usage summary of a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := setupAdminCore(opts)
			defer app.Shutdown()

			summary, err := v1.NewUsageLogic(context.Background(), app).GetUsageSummary(filter, types.Period(period))
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	opts.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&filter.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&filter.WorkspaceID, "workspace", "", "workspace id")
	cmd.Flags().StringVar(&filter.OrganizationID, "organization", "", "organization id")
	cmd.Flags().StringVarP(&period, "period", "p", string(types.PERIOD_MONTHLY), "daily, weekly, monthly or all")
	return cmd
}

func NewBudgetCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "budget <user|workspace|organization> <id>",
		Short: "check whether a scope is within its limits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := setupAdminCore(opts)
			defer app.Shutdown()

			decision, err := v1.NewBudgetLogic(context.Background(), app).CheckBudget(types.ScopeKind(args[0]), args[1])
			if err != nil {
				return err
			}
			return printJSON(decision)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func NewLimitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limit",
		Short: "manage usage limits of users, workspaces and organizations",
	}
	cmd.AddCommand(newLimitSetCommand(), newLimitDeleteCommand(), newLimitListCommand())
	return cmd
}

func newLimitSetCommand() *cobra.Command {
	var (
		opts     = &Options{}
		requests int64
		tokens   int64
		cost     string
		period   string
	)
	cmd := &cobra.Command{
		Use:   "set <user|workspace|organization> <id>",
		Short: "set usage limit of a scope, negative or empty values mean unlimited",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := types.UsageLimit{
				Scope:         types.ScopeKind(args[0]),
				ScopeID:       args[1],
				Period:        types.Period(period),
				RequestsLimit: sql.NullInt64{Int64: requests, Valid: requests >= 0},
				TokensLimit:   sql.NullInt64{Int64: tokens, Valid: tokens >= 0},
			}
			if cost != "" {
				d, err := decimal.NewFromString(cost)
				if err != nil {
					return fmt.Errorf("invalid cost %q, %w", cost, err)
				}
				limit.CostLimit = types.NullMoney{Money: types.NewMoney(d), Valid: true}
			}

			app := setupAdminCore(opts)
			defer app.Shutdown()

			logic := v1.NewBudgetLogic(context.Background(), app)
			if err := logic.SetUsageLimit(limit); err != nil {
				return err
			}
			saved, err := logic.GetUsageLimit(limit.Scope, limit.ScopeID)
			if err != nil {
				return err
			}
			return printJSON(saved)
		},
	}
	opts.AddFlags(cmd.Flags())
	cmd.Flags().Int64Var(&requests, "requests", -1, "max requests per period")
	cmd.Flags().Int64Var(&tokens, "tokens", -1, "max tokens per period")
	cmd.Flags().StringVar(&cost, "cost", "", "max cost in USD per period")
	cmd.Flags().StringVarP(&period, "period", "p", string(types.PERIOD_MONTHLY), "daily, weekly or monthly")
	return cmd
}

func newLimitDeleteCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "delete <user|workspace|organization> <id>",
		Short: "delete usage limit of a scope, the scope falls back to the default limit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := setupAdminCore(opts)
			defer app.Shutdown()

			kind := types.ScopeKind(args[0])
			logic := v1.NewBudgetLogic(context.Background(), app)
			if err := logic.DeleteUsageLimit(kind, args[1]); err != nil {
				return err
			}
			effective, err := logic.GetUsageLimit(kind, args[1])
			if err != nil {
				return err
			}
			return printJSON(effective)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func newLimitListCommand() *cobra.Command {
	var (
		opts     = &Options{}
		page     uint64
		pageSize uint64
	)
	cmd := &cobra.Command{
		Use:   "list [user|workspace|organization]",
		Short: "list configured usage limits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind types.ScopeKind
			if len(args) == 1 {
				kind = types.ScopeKind(args[0])
			}

			app := setupAdminCore(opts)
			defer app.Shutdown()

			list, err := v1.NewBudgetLogic(context.Background(), app).ListUsageLimits(kind, page, pageSize)
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	opts.AddFlags(cmd.Flags())
	cmd.Flags().Uint64Var(&page, "page", 1, "page number, starting from 1")
	cmd.Flags().Uint64Var(&pageSize, "page-size", 50, "page size, 0 means all")
	return cmd
}
