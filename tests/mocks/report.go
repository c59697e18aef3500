package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	reportDomain "github.com/davicafu/phoneregistry/internal/report/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

// InMemoryReportRepo simula ReportRepository con la misma guarda de estado que las bases reales.
// GetErrs se consume en orden, una entrada por llamada a GetByID.
type InMemoryReportRepo struct {
	mu                sync.Mutex
	Reports           map[uuid.UUID]*reportDomain.Report
	StatisticsRows    int
	GetErrs           []error
	SaveCompletionErr error
	SaveFailureErr    error
	BeforeSave        func()
}

func NewInMemoryReportRepo() *InMemoryReportRepo {
	return &InMemoryReportRepo{Reports: make(map[uuid.UUID]*reportDomain.Report)}
}

func (r *InMemoryReportRepo) Insert(ctx context.Context, tx persistence.DBTX, report *reportDomain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reports[report.ID] = cloneReport(report)
	return nil
}

func (r *InMemoryReportRepo) GetByID(ctx context.Context, id uuid.UUID) (*reportDomain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.GetErrs) > 0 {
		err := r.GetErrs[0]
		r.GetErrs = r.GetErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	report, ok := r.Reports[id]
	if !ok {
		return nil, reportDomain.ErrReportNotFound
	}
	return cloneReport(report), nil
}

func (r *InMemoryReportRepo) List(ctx context.Context, page sharedDomain.Pagination) ([]*reportDomain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page = page.Normalize()

	all := make([]*reportDomain.Report, 0, len(r.Reports))
	for _, report := range r.Reports {
		all = append(all, cloneReport(report))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RequestedAt.After(all[j].RequestedAt) })

	if page.Offset >= len(all) {
		return []*reportDomain.Report{}, nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Offset:end], nil
}

func (r *InMemoryReportRepo) SaveCompletion(ctx context.Context, report *reportDomain.Report) error {
	if r.BeforeSave != nil {
		r.BeforeSave()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveCompletionErr != nil {
		return r.SaveCompletionErr
	}
	if err := r.finalizable(report.ID); err != nil {
		return err
	}
	r.Reports[report.ID] = cloneReport(report)
	r.StatisticsRows += len(report.LocationStatistics)
	return nil
}

func (r *InMemoryReportRepo) SaveFailure(ctx context.Context, report *reportDomain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveFailureErr != nil {
		return r.SaveFailureErr
	}
	if err := r.finalizable(report.ID); err != nil {
		return err
	}
	r.Reports[report.ID] = cloneReport(report)
	return nil
}

// Finalize fuerza un estado terminal, como si otra entrega hubiese ganado.
func (r *InMemoryReportRepo) Finalize(id uuid.UUID, status reportDomain.ReportStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reports[id].Status = status
}

func (r *InMemoryReportRepo) finalizable(id uuid.UUID) error {
	stored, ok := r.Reports[id]
	if !ok {
		return reportDomain.ErrReportNotFound
	}
	if stored.Status != reportDomain.ReportPreparing {
		return reportDomain.ErrReportAlreadyFinalized
	}
	return nil
}

func cloneReport(r *reportDomain.Report) *reportDomain.Report {
	c := *r
	c.LocationStatistics = append([]reportDomain.LocationStatistic{}, r.LocationStatistics...)
	return &c
}

// MockContactSource simula la API de contactos.
type MockContactSource struct {
	mock.Mock
}

func (m *MockContactSource) FetchAll(ctx context.Context) ([]reportDomain.PersonContacts, error) {
	args := m.Called(ctx)
	persons, _ := args.Get(0).([]reportDomain.PersonContacts)
	return persons, args.Error(1)
}

// MockStatisticsSink simula el histórico en ClickHouse.
type MockStatisticsSink struct {
	mock.Mock
}

func (m *MockStatisticsSink) RecordReport(ctx context.Context, report *reportDomain.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

var _ reportDomain.ReportRepository = (*InMemoryReportRepo)(nil)
var _ reportDomain.ContactSource = (*MockContactSource)(nil)
var _ reportDomain.StatisticsSink = (*MockStatisticsSink)(nil)
