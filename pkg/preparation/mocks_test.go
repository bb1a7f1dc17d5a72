package preparation_test

import (
	"context"
	"sync"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/stretchr/testify/mock"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) HandleRun(ctx context.Context, req domain.RunRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockParams struct {
	mock.Mock
}

func (m *MockParams) FetchProcessingParams(ctx context.Context, pipelineID, nodeID string) (*domain.ProcessingParams, error) {
	args := m.Called(ctx, pipelineID, nodeID)
	params, _ := args.Get(0).(*domain.ProcessingParams)
	return params, args.Error(1)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func option(id string, kind domain.DatasourceKind) domain.DatasourceOption {
	return domain.DatasourceOption{
		Label: id,
		Value: id,
		Data:  domain.NodeConfig{Type: domain.NodeTypeDatasource, Title: id, ProviderType: kind},
	}
}

var testOptions = []domain.DatasourceOption{
	option("upload", domain.KindLocalFile),
	option("notion", domain.KindOnlineDocument),
	option("crawler", domain.KindWebsiteCrawl),
	option("drive", domain.KindOnlineDrive),
	option("drive-2", domain.KindOnlineDrive),
	option("custom", domain.DatasourceKind("ftp")),
}
