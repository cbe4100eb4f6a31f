package storage

import (
	"testing"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type MockStorageEngine struct{}

func (m *MockStorageEngine) GetProvider() config.StorageProvider {
	return config.StorageProvider("mockProvider")
}

func (m *MockStorageEngine) GetKeysStorage() (KeysRepo, error) {
	return nil, nil
}

func (m *MockStorageEngine) Close() error {
	return nil
}

func TestRegisterStorageEngine(t *testing.T) {
	mockProvider := config.StorageProvider("mockProvider")
	mockBuilder := func(logger *logrus.Entry, config config.PluggableStorageEngine) (StorageEngine, error) {
		return &MockStorageEngine{}, nil
	}

	RegisterStorageEngine(mockProvider, mockBuilder)

	builder := GetEngineBuilder(mockProvider)
	assert.NotNil(t, builder)

	engine, err := builder(logrus.NewEntry(logrus.New()), config.PluggableStorageEngine{})
	assert.NoError(t, err)
	assert.Equal(t, mockProvider, engine.GetProvider())
}

func TestGetEngineBuilderUnknown(t *testing.T) {
	assert.Nil(t, GetEngineBuilder(config.StorageProvider("nonexistent")))
}
