package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hijo-electricity/hijo/internal/model"
)

const projectColumns = "id, title_en, title_ar, description_en, description_ar, image, created_at, updated_at"

// CreateProject inserts p and fills in its ID and timestamps.
func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	id, err := s.insert(ctx,
		`INSERT INTO projects (title_en, title_ar, description_en, description_ar, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.TitleEn, p.TitleAr, p.DescriptionEn, p.DescriptionAr, p.Image, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	p.ID = id
	return nil
}

// GetProject returns a project by ID.
func (s *Store) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, &p, s.db.Rebind("SELECT "+projectColumns+" FROM projects WHERE id = ?"), id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	projects := []model.Project{}
	err := s.withRetry(ctx, func(ctx context.Context) error {
		projects = projects[:0]
		return s.db.SelectContext(ctx, &projects,
			"SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC, id DESC")
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListProjectImages returns the image path of every project.
func (s *Store) ListProjectImages(ctx context.Context) ([]string, error) {
	images := []string{}
	err := s.withRetry(ctx, func(ctx context.Context) error {
		images = images[:0]
		return s.db.SelectContext(ctx, &images, "SELECT image FROM projects")
	})
	if err != nil {
		return nil, fmt.Errorf("list project images: %w", err)
	}
	return images, nil
}

// UpdateProject writes every mutable column of p. UpdatedAt is refreshed.
func (s *Store) UpdateProject(ctx context.Context, p *model.Project) error {
	p.UpdatedAt = time.Now().UTC()
	err := s.execAffecting(ctx,
		`UPDATE projects SET title_en = ?, title_ar = ?, description_en = ?, description_ar = ?,
		image = ?, updated_at = ? WHERE id = ?`,
		p.TitleEn, p.TitleAr, p.DescriptionEn, p.DescriptionAr, p.Image, p.UpdatedAt, p.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("update project: %w", err)
	}
	return err
}

// DeleteProject removes a project row by ID.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	err := s.execAffecting(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete project: %w", err)
	}
	return err
}
