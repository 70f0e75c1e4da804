package client

import (
	"context"

	"github.com/devadigapratham/printlog/api/models"
)

// Store holds the optimistic caches of one signed-in account.
type Store struct {
	client *Client

	Filaments *Collection[models.Filament]
	Printers  *Collection[models.Printer]
	Projects  *Collection[models.Project]
}

// NewStore creates empty caches backed by c.
func NewStore(c *Client) *Store {
	return &Store{
		client:    c,
		Filaments: NewCollection[models.Filament](filamentEndpoint{c}),
		Printers:  NewCollection[models.Printer](printerEndpoint{c}),
		Projects:  NewCollection[models.Project](projectEndpoint{c}),
	}
}

// FetchAll loads every collection from the server.
func (s *Store) FetchAll(ctx context.Context) error {
	if _, err := s.Filaments.Fetch(ctx); err != nil {
		return err
	}
	if _, err := s.Printers.Fetch(ctx); err != nil {
		return err
	}
	_, err := s.Projects.Fetch(ctx)
	return err
}

// UpdateFilamentWeight shows the new weight right away, clamped the way
// the server clamps it.
func (s *Store) UpdateFilamentWeight(ctx context.Context, id string, weight float64) (models.Filament, error) {
	return s.Filaments.QuickUpdate(ctx, id,
		func(f models.Filament) models.Filament {
			f.CurrentWeight = models.ClampWeight(weight, f.TotalWeight)
			return f
		},
		func(ctx context.Context) (models.Filament, error) {
			return s.client.UpdateFilamentWeight(ctx, id, weight)
		})
}

// UpdatePrinterStatus shows the new status right away.
func (s *Store) UpdatePrinterStatus(ctx context.Context, id, status string) (models.Printer, error) {
	return s.Printers.QuickUpdate(ctx, id,
		func(p models.Printer) models.Printer {
			p.Status = status
			return p
		},
		func(ctx context.Context) (models.Printer, error) {
			return s.client.UpdatePrinterStatus(ctx, id, status)
		})
}

// UpdateProjectStatus shows the new project status right away.
func (s *Store) UpdateProjectStatus(ctx context.Context, id, status string) (models.Project, error) {
	return s.Projects.QuickUpdate(ctx, id,
		func(p models.Project) models.Project {
			if data, err := models.SetDataStatus(p.Data, status); err == nil {
				p.Data = data
			}
			return p
		},
		func(ctx context.Context) (models.Project, error) {
			return s.client.UpdateProjectStatus(ctx, id, status)
		})
}

// Approve runs the approval on the server and reloads the collections it
// touched. Nothing is applied locally before the server confirms.
func (s *Store) Approve(ctx context.Context, req models.Approval) error {
	if err := s.client.ApproveBudget(ctx, req); err != nil {
		return err
	}
	if _, err := s.Projects.Fetch(ctx); err != nil {
		return err
	}
	if req.PrinterID != "" {
		if _, err := s.Printers.Fetch(ctx); err != nil {
			return err
		}
	}
	if len(req.Filaments) > 0 {
		if _, err := s.Filaments.Fetch(ctx); err != nil {
			return err
		}
	}
	return nil
}

type filamentEndpoint struct{ c *Client }

func (e filamentEndpoint) List(ctx context.Context) ([]models.Filament, error) {
	return e.c.ListFilaments(ctx)
}

func (e filamentEndpoint) Save(ctx context.Context, f models.Filament) (models.Filament, error) {
	return e.c.SaveFilament(ctx, f)
}

func (e filamentEndpoint) Delete(ctx context.Context, id string) error {
	return e.c.DeleteFilament(ctx, id)
}

func (filamentEndpoint) ID(f models.Filament) string { return f.ID }

func (filamentEndpoint) WithID(f models.Filament, id string) models.Filament {
	f.ID = id
	return f
}

type printerEndpoint struct{ c *Client }

func (e printerEndpoint) List(ctx context.Context) ([]models.Printer, error) {
	return e.c.ListPrinters(ctx)
}

func (e printerEndpoint) Save(ctx context.Context, p models.Printer) (models.Printer, error) {
	return e.c.SavePrinter(ctx, p)
}

func (e printerEndpoint) Delete(ctx context.Context, id string) error {
	return e.c.DeletePrinter(ctx, id)
}

func (printerEndpoint) ID(p models.Printer) string { return p.ID }

func (printerEndpoint) WithID(p models.Printer, id string) models.Printer {
	p.ID = id
	return p
}

type projectEndpoint struct{ c *Client }

func (e projectEndpoint) List(ctx context.Context) ([]models.Project, error) {
	return e.c.ListProjects(ctx)
}

func (e projectEndpoint) Save(ctx context.Context, p models.Project) (models.Project, error) {
	return e.c.SaveProject(ctx, p)
}

func (e projectEndpoint) Delete(ctx context.Context, id string) error {
	return e.c.DeleteProject(ctx, id)
}

func (projectEndpoint) ID(p models.Project) string { return p.ID }

func (projectEndpoint) WithID(p models.Project, id string) models.Project {
	p.ID = id
	return p
}
