package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alquimista/studio/internal/finance"
	"github.com/alquimista/studio/internal/formatter"
	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/shared"
	"github.com/urfave/cli/v3"
)

// FinanceSummary prints per-machine totals and the aggregate profit split.
func (r *Runner) FinanceSummary(ctx context.Context, cmd *cli.Command) error {
	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	if err := r.ledger.Load(ctx); err != nil {
		return fmt.Errorf("failed to load machines: %w", err)
	}
	machines := r.ledger.Snapshot()

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Machines []models.Machine `json:"machines"`
			Totals   finance.Totals   `json:"totals"`
		}{machines, finance.GlobalTotals(machines)}, true)
	}
	return r.writePlain("%s", string(formatter.FinanceSummaryToText(machines)))
}

// FinanceAdd creates a machine from --service/--expense name=value pairs.
func (r *Runner) FinanceAdd(ctx context.Context, cmd *cli.Command) error {
	services, err := parseLineItems(cmd.StringSlice("service"))
	if err != nil {
		return err
	}
	expenses, err := parseLineItems(cmd.StringSlice("expense"))
	if err != nil {
		return err
	}

	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	machine := models.Machine{
		Name:     cmd.String("name"),
		Services: services,
		Expenses: expenses,
		Labor:    cmd.Float("labor"),
	}
	created, err := r.ledger.Create(ctx, machine)
	if err != nil {
		return fmt.Errorf("failed to create machine: %w", err)
	}

	r.writePlain("✓ Máquina %s criada (total R$ %.2f)\n", created.Name, finance.MachineTotal(*created))
	return nil
}

// FinanceRemove deletes a machine by id.
func (r *Runner) FinanceRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: machine id", shared.ErrMissingArgument)
	}

	if err := r.resume(ctx); err != nil {
		return err
	}
	defer r.conn.Disconnect()

	if err := r.ledger.Load(ctx); err != nil {
		return fmt.Errorf("failed to load machines: %w", err)
	}
	if err := r.ledger.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove machine: %w", err)
	}
	r.writePlain("✓ Máquina %s removida\n", id)
	return nil
}

// parseLineItems converts repeated name=value flags into line items.
func parseLineItems(raw []string) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(raw))
	for _, entry := range raw {
		name, value, found := strings.Cut(entry, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("%w: expected name=value, got %q", shared.ErrInvalidFlag, entry)
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", shared.ErrInvalidFlag, value)
		}
		items = append(items, models.LineItem{Name: name, Value: parsed})
	}
	return items, nil
}
