package store

import (
	"context"
	"sync"

	"spotfix-widget-service/models"
)

// Provisioning field names accepted by UpdateProvisioning. They match the
// bson/json tags on models.ProvisioningState.
const (
	FieldAttemptID    = "attempt_id"
	FieldUserToken    = "user_token"
	FieldEmail        = "email"
	FieldAccountID    = "account_id"
	FieldSessionID    = "session_id"
	FieldUserID       = "user_id"
	FieldProjectID    = "project_id"
	FieldProjectToken = "project_token"
	FieldCreatedAt    = "created_at"
)

// Store is the persistence port for the two flat records the service owns.
// Loads of missing records return activation defaults, never an error.
// Updates are last-write-wins; this is a single-admin configuration surface.
type Store interface {
	LoadSettings(ctx context.Context) (models.WidgetSettings, error)
	SaveSettings(ctx context.Context, settings models.WidgetSettings) error

	LoadProvisioning(ctx context.Context) (models.ProvisioningState, error)
	// UpdateProvisioning merges the given fields into the stored record,
	// leaving absent fields untouched (checkpoint semantics).
	UpdateProvisioning(ctx context.Context, fields map[string]string) error
	ResetProvisioning(ctx context.Context) error
}

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu       sync.Mutex
	settings *models.WidgetSettings
	prov     models.ProvisioningState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LoadSettings(ctx context.Context) (models.WidgetSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return models.DefaultWidgetSettings(), nil
	}
	return *m.settings, nil
}

func (m *MemoryStore) SaveSettings(ctx context.Context, settings models.WidgetSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := settings
	m.settings = &s
	return nil
}

func (m *MemoryStore) LoadProvisioning(ctx context.Context) (models.ProvisioningState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prov, nil
}

func (m *MemoryStore) UpdateProvisioning(ctx context.Context, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	applyProvisioningFields(&m.prov, fields)
	return nil
}

func (m *MemoryStore) ResetProvisioning(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prov = models.ProvisioningState{}
	return nil
}

func applyProvisioningFields(state *models.ProvisioningState, fields map[string]string) {
	for key, value := range fields {
		switch key {
		case FieldAttemptID:
			state.AttemptID = value
		case FieldUserToken:
			state.UserToken = value
		case FieldEmail:
			state.Email = value
		case FieldAccountID:
			state.AccountID = value
		case FieldSessionID:
			state.SessionID = value
		case FieldUserID:
			state.UserID = value
		case FieldProjectID:
			state.ProjectID = value
		case FieldProjectToken:
			state.ProjectToken = value
		case FieldCreatedAt:
			state.CreatedAt = value
		}
	}
}
