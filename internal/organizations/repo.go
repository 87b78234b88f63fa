package organizations

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	"github.com/angelmondragon/proppilot-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no organization matches the lookup.
var ErrNotFound = errors.New("organization not found")

// Repository handles organization and verification log persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetOrganizationByEmail(ctx context.Context, email string) (*models.Organization, error)
	GetOrganizationByStripeCustomerID(ctx context.Context, customerID string) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	ListOrganizations(ctx context.Context, params ListQuery) ([]models.Organization, *pagination.Cursor, error)
	ListPastDueWithFailure(ctx context.Context) ([]models.Organization, error)
	CreateBusinessVerificationLog(ctx context.Context, entry *models.BusinessVerificationLog) error
	ListBusinessVerificationLogs(ctx context.Context, orgID uuid.UUID) ([]models.BusinessVerificationLog, error)
}

// ListQuery filters the admin organization listing.
type ListQuery struct {
	Status             *enums.OrganizationStatus
	VerificationStatus *enums.VerificationStatus
	Limit              int
	Cursor             *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an organization repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org == nil {
		return fmt.Errorf("organization is required")
	}
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repository) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) GetOrganizationByEmail(ctx context.Context, email string) (*models.Organization, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *repository) GetOrganizationByStripeCustomerID(ctx context.Context, customerID string) (*models.Organization, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	return r.first(ctx, "stripe_customer_id = ?", customerID)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where(query, args...).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

// UpdateOrganization saves every column of the organization.
func (r *repository) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	if org == nil {
		return fmt.Errorf("organization is required")
	}
	return r.db.WithContext(ctx).Save(org).Error
}

func (r *repository) ListOrganizations(ctx context.Context, params ListQuery) ([]models.Organization, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Organization{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.VerificationStatus != nil {
		query = query.Where("verification_status = ?", *params.VerificationStatus)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var orgs []models.Organization
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&orgs).Error; err != nil {
		return nil, nil, err
	}

	if len(orgs) > limit {
		orgs = orgs[:limit]
		next := orgs[limit-1]
		return orgs, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return orgs, nil, nil
}

// ListPastDueWithFailure returns the sweeper's candidate set.
func (r *repository) ListPastDueWithFailure(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.OrganizationStatusPastDue).
		Where("payment_failed_at IS NOT NULL").
		Order("payment_failed_at ASC").
		Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) CreateBusinessVerificationLog(ctx context.Context, entry *models.BusinessVerificationLog) error {
	if entry == nil {
		return fmt.Errorf("verification log is required")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListBusinessVerificationLogs(ctx context.Context, orgID uuid.UUID) ([]models.BusinessVerificationLog, error) {
	var logs []models.BusinessVerificationLog
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
