package mock

import (
	"context"

	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
	"github.com/stretchr/testify/mock"
)

type MockKeyManager struct {
	mock.Mock
}

func (m *MockKeyManager) GetKey(ctx context.Context, input services.GetKeyInput) (*models.Key, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(*models.Key), args.Error(1)
}

func (m *MockKeyManager) GetAllKeys(ctx context.Context, input services.GetAllKeysInput) ([]*models.Key, error) {
	args := m.Called(ctx, input)
	return args.Get(0).([]*models.Key), args.Error(1)
}

func (m *MockKeyManager) GetInactivePrivateKeys(ctx context.Context) ([]*models.Key, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Key), args.Error(1)
}

func (m *MockKeyManager) PutRawKey(ctx context.Context, input services.PutRawKeyInput) (*models.Key, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(*models.Key), args.Error(1)
}

func (m *MockKeyManager) FetchKey(ctx context.Context, input services.FetchKeyInput) (*models.Key, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(*models.Key), args.Error(1)
}

func (m *MockKeyManager) FetchKeyFingerprint(ctx context.Context, input services.FetchKeyFingerprintInput) (*models.Key, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(*models.Key), args.Error(1)
}

func (m *MockKeyManager) SendKey(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockKeyManager) Encrypt(ctx context.Context, input services.EncryptInput) ([]byte, error) {
	args := m.Called(ctx, input)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyManager) Decrypt(ctx context.Context, input services.DecryptInput) (*models.DecryptResult, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(*models.DecryptResult), args.Error(1)
}

func (m *MockKeyManager) Sign(ctx context.Context, input services.SignInput) ([]byte, error) {
	args := m.Called(ctx, input)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyManager) Verify(ctx context.Context, input services.VerifyInput) (models.VerificationResult, error) {
	args := m.Called(ctx, input)
	result, _ := args.Get(0).(models.VerificationResult)
	return result, args.Error(1)
}

func (m *MockKeyManager) GenerateKey(ctx context.Context) (*models.Key, error) {
	args := m.Called(ctx)
	return args.Get(0).(*models.Key), args.Error(1)
}

func (m *MockKeyManager) RegenerateKey(ctx context.Context) (*models.Key, error) {
	args := m.Called(ctx)
	return args.Get(0).(*models.Key), args.Error(1)
}

func (m *MockKeyManager) ExtendKey(ctx context.Context, input services.ExtendKeyInput) (*models.Key, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(*models.Key), args.Error(1)
}
