package store

import (
	"time"

	"github.com/jinzhu/gorm"

	"github.com/civitas-labs/dispatch-api/schema"
)

// CreateRequest inserts a fresh pending help request. The contact fields
// are snapshots of the citizen's profile at alert time.
func (s *DispatchStore) CreateRequest(principal, name, mobile, address string, loc schema.Location) (*schema.HelpRequest, error) {
	req := schema.HelpRequest{
		Status:           schema.StatusPending,
		CitizenPrincipal: principal,
		CitizenName:      name,
		CitizenMobile:    mobile,
		Location:         loc,
		Address:          address,
		CreatedAt:        time.Now(),
	}

	if err := s.ormDB.Create(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *DispatchStore) GetRequest(requestID uint64) (*schema.HelpRequest, error) {
	var req schema.HelpRequest
	if err := s.ormDB.Where("id = ?", requestID).First(&req).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (s *DispatchStore) ListRequests() ([]schema.HelpRequest, error) {
	reqs := []schema.HelpRequest{}
	if err := s.ormDB.Order("id asc").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *DispatchStore) ListRequestsByStatus(status schema.RequestStatus) ([]schema.HelpRequest, error) {
	reqs := []schema.HelpRequest{}
	if err := s.ormDB.Where("status = ?", status).Order("id asc").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *DispatchStore) ListRequestsByPrincipal(principal string) ([]schema.HelpRequest, error) {
	reqs := []schema.HelpRequest{}
	if err := s.ormDB.Where("citizen_principal = ?", principal).Order("id asc").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// AcceptRequest sets a pending request to `accepted` and records the
// officer as the assignee. The status guard and the assignment happen in
// one conditional UPDATE, so of N concurrent accepts exactly one matches
// the pending row; the others see zero affected rows.
func (s *DispatchStore) AcceptRequest(requestID uint64, officer string) error {
	result := s.ormDB.Model(schema.HelpRequest{}).
		Where("id = ? AND status = ?", requestID, schema.StatusPending).
		Updates(map[string]interface{}{
			"status":           schema.StatusAccepted,
			"assigned_officer": officer,
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return s.requestGuardError(requestID, ErrRequestNotPending)
	}

	return nil
}

// CompleteRequest sets an accepted request to `resolved`. The caller is
// not required to be the assigned officer; any officer can close out.
func (s *DispatchStore) CompleteRequest(requestID uint64, officer string) error {
	result := s.ormDB.Model(schema.HelpRequest{}).
		Where("id = ? AND status = ?", requestID, schema.StatusAccepted).
		Update("status", schema.StatusResolved)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return s.requestGuardError(requestID, ErrRequestNotAccepted)
	}

	return nil
}

// requestGuardError distinguishes an unknown id from a violated status
// guard after a conditional update matched nothing.
func (s *DispatchStore) requestGuardError(requestID uint64, guardErr error) error {
	var req schema.HelpRequest
	if err := s.ormDB.Select("id, status").Where("id = ?", requestID).First(&req).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return ErrRequestNotFound
		}
		return err
	}
	return guardErr
}
