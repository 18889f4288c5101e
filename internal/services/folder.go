package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

// ErrFolderCycle is returned when a folder would become its own ancestor
var ErrFolderCycle = errors.New("folder cannot be its own ancestor")

// maxFolderDepth bounds the ancestor walk on corrupted hierarchies
const maxFolderDepth = 256

// folderService implements FolderService
type folderService struct {
	logger    *logger.Logger
	folders   repositories.FolderRepository
	validator *models.ValidationService
}

// NewFolderService creates a new folder service
func NewFolderService(logger *logger.Logger, folders repositories.FolderRepository, validator *models.ValidationService) FolderService {
	return &folderService{
		logger:    logger,
		folders:   folders,
		validator: validator,
	}
}

func (s *folderService) ListFolders(ctx context.Context, caller *Caller) ([]*models.Folder, error) {
	return s.folders.ListByTenant(ctx, caller.TenantID())
}

func (s *folderService) GetFolder(ctx context.Context, caller *Caller, id string) (*models.Folder, error) {
	return s.folders.GetByID(ctx, caller.TenantID(), id)
}

// CreateFolder stores a folder in the caller's tenant. The parent, when
// given, must belong to the same tenant.
func (s *folderService) CreateFolder(ctx context.Context, caller *Caller, folder *models.Folder) (*models.Folder, error) {
	folder.ID = ""
	folder.TenantID = caller.TenantID()

	if err := s.validator.ValidateStruct(folder); err != nil {
		return nil, err
	}

	if folder.ParentID != nil {
		if _, err := s.folders.GetByID(ctx, folder.TenantID, *folder.ParentID); err != nil {
			return nil, fmt.Errorf("parent folder: %w", err)
		}
	}

	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

// UpdateFolder renames, recolors or moves a folder. Moves that would make
// the folder its own ancestor are rejected.
func (s *folderService) UpdateFolder(ctx context.Context, caller *Caller, folder *models.Folder) (*models.Folder, error) {
	tenantID := caller.TenantID()

	existing, err := s.folders.GetByID(ctx, tenantID, folder.ID)
	if err != nil {
		return nil, err
	}

	existing.Name = folder.Name
	existing.Color = folder.Color
	existing.ParentID = folder.ParentID

	if err := s.validator.ValidateStruct(existing); err != nil {
		return nil, err
	}

	if existing.ParentID != nil {
		if err := s.checkAncestry(ctx, tenantID, existing.ID, *existing.ParentID); err != nil {
			return nil, err
		}
	}

	if err := s.folders.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update folder: %w", err)
	}
	return existing, nil
}

// checkAncestry walks up from parentID and fails if it reaches folderID
func (s *folderService) checkAncestry(ctx context.Context, tenantID, folderID, parentID string) error {
	current := parentID
	for depth := 0; depth < maxFolderDepth; depth++ {
		if current == folderID {
			return ErrFolderCycle
		}

		parent, err := s.folders.GetByID(ctx, tenantID, current)
		if err != nil {
			if depth == 0 {
				return fmt.Errorf("parent folder: %w", err)
			}
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		current = *parent.ParentID
	}
	return ErrFolderCycle
}

// DeleteFolder removes a folder; its children become root folders
func (s *folderService) DeleteFolder(ctx context.Context, caller *Caller, id string) error {
	if err := s.folders.Delete(ctx, caller.TenantID(), id); err != nil {
		return err
	}
	s.logger.WithTenant(caller.TenantID()).WithField("folder_id", id).Info("Folder deleted")
	return nil
}
