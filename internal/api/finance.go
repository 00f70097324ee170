package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/shared"
)

// Machines fetches the bookkeeping panel's machine list.
func (c *Client) Machines(ctx context.Context) ([]models.Machine, error) {
	var machines []models.Machine
	if err := c.getJSON(ctx, "/api/machines", &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// CreateMachine persists a new machine and returns it with its server id.
func (c *Client) CreateMachine(ctx context.Context, m models.Machine) (*models.Machine, error) {
	var created models.Machine
	if err := c.postJSON(ctx, "/api/machines", m, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateMachine saves the full state of an existing machine.
func (c *Client) UpdateMachine(ctx context.Context, m models.Machine) error {
	if m.ID == "" {
		return fmt.Errorf("%w: machine id", shared.ErrMissingArgument)
	}

	data, err := jsonBody(m)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, "/api/machines/"+m.ID, data, "application/json")
	return err
}

// DeleteMachine removes a machine.
func (c *Client) DeleteMachine(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: machine id", shared.ErrMissingArgument)
	}
	_, err := c.do(ctx, http.MethodDelete, "/api/machines/"+id, nil, "")
	return err
}
