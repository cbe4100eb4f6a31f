package mock

import (
	"context"

	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/stretchr/testify/mock"
)

type MockDirectoryClient struct {
	mock.Mock
}

func (m *MockDirectoryClient) FetchByAddress(ctx context.Context, address string) (*models.DirectoryKeyResponse, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(*models.DirectoryKeyResponse), args.Error(1)
}

func (m *MockDirectoryClient) FetchByFingerprint(ctx context.Context, fingerprint string) (*models.DirectoryKeyResponse, error) {
	args := m.Called(ctx, fingerprint)
	return args.Get(0).(*models.DirectoryKeyResponse), args.Error(1)
}

func (m *MockDirectoryClient) PutKey(ctx context.Context, armoredPublicKey string) error {
	args := m.Called(ctx, armoredPublicKey)
	return args.Error(0)
}

type MockRawKeyFetcher struct {
	mock.Mock
}

func (m *MockRawKeyFetcher) Fetch(ctx context.Context, url string) ([]byte, models.ValidationLevel, error) {
	args := m.Called(ctx, url)
	return args.Get(0).([]byte), args.Get(1).(models.ValidationLevel), args.Error(2)
}
