package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Job is a generation request accepted by the remote service.
type Job struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Account   string `gorm:"index;not null;default:''"`
	Operation string `gorm:"not null;default:''"`
	Relay     string `gorm:"not null;default:''"`

	Prompt       string `gorm:"not null;default:''"`
	Tags         string `gorm:"not null;default:''"`
	Title        string `gorm:"not null;default:''"`
	Instrumental bool   `gorm:"not null;default:false"`

	// Comma separated ids of the clips created by the job.
	ClipIDs string `gorm:"not null;default:''"`
	Done    bool   `gorm:"index"`
}

// Clips returns the clip ids of the job.
func (j *Job) Clips() []string {
	if j.ClipIDs == "" {
		return nil
	}
	return strings.Split(j.ClipIDs, ",")
}

func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var v Job
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get job %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) SetJob(ctx context.Context, v *Job) error {
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set job %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&Job{ID: id}, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: failed to delete job %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, page, size int, orderBy string, filter ...Filter) ([]*Job, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	vs := []*Job{}

	q := s.db.WithContext(ctx).Offset(offset).Limit(size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list jobs: %w", err)
	}
	return vs, nil
}
