package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/dentalprotocols/backend/internal/application/services"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
)

// memoryEvaluations is an in-memory EvaluationRepository
type memoryEvaluations struct {
	mu      sync.Mutex
	rows    map[string]*entities.Evaluation
	order   []string
	nextID  int
	failIns map[string]error // by tooth
}

func newMemoryEvaluations() *memoryEvaluations {
	return &memoryEvaluations{rows: make(map[string]*entities.Evaluation), failIns: make(map[string]error)}
}

func (m *memoryEvaluations) seed(e *entities.Evaluation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *e
	m.rows[e.ID] = &copied
	m.order = append(m.order, e.ID)
}

func (m *memoryEvaluations) Insert(ctx context.Context, evaluation *entities.Evaluation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failIns[evaluation.Tooth]; ok {
		return "", err
	}
	m.nextID++
	id := fmt.Sprintf("eval-%s-%d", evaluation.Tooth, m.nextID)
	copied := *evaluation
	copied.ID = id
	m.rows[id] = &copied
	m.order = append(m.order, id)
	return id, nil
}

func (m *memoryEvaluations) Update(ctx context.Context, id string, patch entities.EvaluationPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return errors.New("evaluation not found")
	}
	applyPatch(row, patch)
	return nil
}

func (m *memoryEvaluations) UpdateStatus(ctx context.Context, id string, status entities.EvaluationStatus) error {
	return m.Update(ctx, id, entities.EvaluationPatch{Status: &status})
}

func (m *memoryEvaluations) UpdateStatusBulk(ctx context.Context, ids []string, status entities.EvaluationStatus) error {
	return m.UpdateBulk(ctx, ids, entities.EvaluationPatch{Status: &status})
}

func (m *memoryEvaluations) UpdateBulk(ctx context.Context, ids []string, patch entities.EvaluationPatch) error {
	for _, id := range ids {
		if err := m.Update(ctx, id, patch); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryEvaluations) GetByID(ctx context.Context, id string) (*entities.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (m *memoryEvaluations) ListBySession(ctx context.Context, sessionID, userID string) ([]*entities.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entities.Evaluation
	for _, id := range m.order {
		row := m.rows[id]
		if row.SessionID == sessionID && row.UserID == userID {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryEvaluations) byTooth(tooth string) *entities.Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if m.rows[id].Tooth == tooth {
			copied := *m.rows[id]
			return &copied
		}
	}
	return nil
}

func (m *memoryEvaluations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func applyPatch(row *entities.Evaluation, patch entities.EvaluationPatch) {
	if patch.Status != nil {
		row.Status = *patch.Status
	}
	if patch.Budget != nil {
		row.Budget = *patch.Budget
	}
	if patch.AestheticLevel != nil {
		row.AestheticLevel = *patch.AestheticLevel
	}
	if patch.StratificationProtocol != nil {
		row.StratificationProtocol = patch.StratificationProtocol
	}
	if patch.CementationProtocol != nil {
		row.CementationProtocol = patch.CementationProtocol
	}
	if patch.GenericProtocol != nil {
		row.GenericProtocol = patch.GenericProtocol
	}
	if patch.ChecklistProgress != nil {
		row.ChecklistProgress = *patch.ChecklistProgress
	}
}

// memoryPending is an in-memory PendingToothRepository
type memoryPending struct {
	mu      sync.Mutex
	teeth   map[string]*entities.PendingTooth
	deleted []string
}

func newMemoryPending(sessionID, userID string, assignments map[string]entities.TreatmentType) *memoryPending {
	m := &memoryPending{teeth: make(map[string]*entities.PendingTooth)}
	for tooth, treatment := range assignments {
		m.teeth[tooth] = &entities.PendingTooth{
			SessionID:     sessionID,
			UserID:        userID,
			Tooth:         tooth,
			TreatmentType: treatment,
			ClinicalData: entities.ClinicalData{
				ToothColor:  "A2",
				Budget:      "padrão",
				CeramicType: "dissilicato_de_litio",
			},
		}
	}
	return m
}

func (m *memoryPending) ListBySession(ctx context.Context, sessionID, userID string) ([]*entities.PendingTooth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.PendingTooth, 0, len(m.teeth))
	for _, p := range m.teeth {
		if p.SessionID == sessionID && p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tooth < out[j].Tooth })
	return out, nil
}

func (m *memoryPending) DeleteTeeth(ctx context.Context, sessionID string, teeth []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tooth := range teeth {
		delete(m.teeth, tooth)
		m.deleted = append(m.deleted, tooth)
	}
	return nil
}

func (m *memoryPending) remaining() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for tooth := range m.teeth {
		out = append(out, tooth)
	}
	sort.Strings(out)
	return out
}

// recordingEventBus keeps every published event
type recordingEventBus struct {
	mu        sync.Mutex
	published []*entities.EvaluationEvent
}

func (b *recordingEventBus) Publish(ctx context.Context, channel string, event *entities.EvaluationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
	return nil
}

func (b *recordingEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.EvaluationEvent, error) {
	return nil, errors.New("not supported")
}

func (b *recordingEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (b *recordingEventBus) Close() error { return nil }

func (b *recordingEventBus) count(eventType entities.EvaluationEventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.published {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

var _ providers.EventBus = (*recordingEventBus)(nil)

// MockDispatchClients records which downstream port a dispatch used
type MockDispatchClients struct {
	mock.Mock
}

func (m *MockDispatchClients) InvokeResin(ctx context.Context, params services.ResinParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockDispatchClients) InvokeCementation(ctx context.Context, params services.CementationParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockDispatchClients) SaveGenericProtocol(ctx context.Context, evaluationID string, protocol *entities.GenericProtocol) error {
	args := m.Called(ctx, evaluationID, protocol)
	return args.Error(0)
}

// MockGenerator is a scripted ProtocolGenerator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateJSON(ctx context.Context, prompt providers.Prompt) (*providers.Completion, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Completion), args.Error(1)
}

func (m *MockGenerator) GenerateFunctionCall(ctx context.Context, prompt providers.Prompt, schema json.RawMessage) (*providers.Completion, error) {
	args := m.Called(ctx, prompt, schema)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Completion), args.Error(1)
}

func (m *MockGenerator) Model() string { return "gpt-4o" }

// MockCreditRepository is a testify CreditRepository
type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) Consume(ctx context.Context, userID, operation, idempotencyID string, amount int) (entities.CreditResult, error) {
	args := m.Called(ctx, userID, operation, idempotencyID, amount)
	return args.Get(0).(entities.CreditResult), args.Error(1)
}

func (m *MockCreditRepository) Refund(ctx context.Context, userID, operation, idempotencyID string) error {
	args := m.Called(ctx, userID, operation, idempotencyID)
	return args.Error(0)
}

// Settled reports an unused idempotency id unless the test expects the call
func (m *MockCreditRepository) Settled(ctx context.Context, userID, operation, idempotencyID string) (bool, error) {
	for _, call := range m.ExpectedCalls {
		if call.Method == "Settled" {
			args := m.Called(ctx, userID, operation, idempotencyID)
			return args.Bool(0), args.Error(1)
		}
	}
	return false, nil
}

func (m *MockCreditRepository) RecordRefundFailure(ctx context.Context, failure *entities.RefundFailure) error {
	args := m.Called(ctx, failure)
	return args.Error(0)
}

func (m *MockCreditRepository) ListRefundFailures(ctx context.Context, limit int) ([]*entities.RefundFailure, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.RefundFailure), args.Error(1)
}

func (m *MockCreditRepository) ResolveRefundFailure(ctx context.Context, id string, lastErr error) error {
	args := m.Called(ctx, id, lastErr)
	return args.Error(0)
}

// memoryRateLimits stores counters the way the database upsert does
type memoryRateLimits struct {
	mu      sync.Mutex
	rows    map[string]*entities.RateLimitCounters
	failGet error
	// beforeIncrement lets a test land a concurrent write between the read and the increment
	beforeIncrement func(row *entities.RateLimitCounters)
}

func newMemoryRateLimits() *memoryRateLimits {
	return &memoryRateLimits{rows: make(map[string]*entities.RateLimitCounters)}
}

func (m *memoryRateLimits) Get(ctx context.Context, userID, operation string) (*entities.RateLimitCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	row, ok := m.rows[userID+"|"+operation]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (m *memoryRateLimits) Increment(ctx context.Context, userID, operation string, w entities.RateLimitWindows, limits entities.RateLimitConfig) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + operation
	row, ok := m.rows[key]
	if !ok {
		row = &entities.RateLimitCounters{UserID: userID, Operation: operation}
		m.rows[key] = row
	}
	if m.beforeIncrement != nil {
		m.beforeIncrement(row)
	}
	minute, hour, day := row.Current(w)
	if (limits.PerMinute > 0 && minute >= limits.PerMinute) ||
		(limits.PerHour > 0 && hour >= limits.PerHour) ||
		(limits.PerDay > 0 && day >= limits.PerDay) {
		return false, nil
	}
	if row.MinuteWindow.Equal(w.Minute) {
		row.MinuteCount++
	} else {
		row.MinuteCount, row.MinuteWindow = 1, w.Minute
	}
	if row.HourWindow.Equal(w.Hour) {
		row.HourCount++
	} else {
		row.HourCount, row.HourWindow = 1, w.Hour
	}
	if row.DayWindow.Equal(w.Day) {
		row.DayCount++
	} else {
		row.DayCount, row.DayWindow = 1, w.Day
	}
	return true, nil
}

func sampleResinJSON(shade string) []byte {
	return []byte(`{
		"layers": [
			{"order": 1, "name": "Esmalte palatino", "resin_brand": "Ivoclar - IPS Empress Direct", "shade": "` + shade + `", "thickness": "0.3mm", "purpose": "base", "technique": "guia de silicone"},
			{"order": 2, "name": "Dentina", "resin_brand": "Ivoclar - IPS Empress Direct", "shade": "A2 Dentin", "thickness": "0.5mm", "purpose": "corpo", "technique": "incremental"}
		],
		"alternative": {"resin": "Z350", "shade": "A2", "technique": "monocromática", "tradeoff": "menos estética"},
		"checklist": ["Aplicar ` + shade + ` na camada palatina", "Fotopolimerizar 20s"],
		"alerts": [],
		"warnings": [],
		"confidence": "alta"
	}`)
}

func sampleCementationJSON() []byte {
	return []byte(`{
		"preparation_steps": [{"order": 1, "step": "Profilaxia", "material": "pedra-pomes"}],
		"ceramic_treatment": [{"order": 1, "step": "Condicionar com ácido fluorídrico 10% por 60 segundos", "material": "HF 10%", "duration": "60s"}],
		"tooth_treatment": [{"order": 1, "step": "Condicionamento ácido", "material": "ácido fosfórico 37%", "duration": "30s"}],
		"cementation": {"cement_type": "resinoso", "cement_brand": "Variolink", "shade": "transparente", "light_curing_time": "40s", "technique": "fotopolimerizável"},
		"finishing": [{"order": 1, "step": "Remoção de excessos", "material": "lâmina 12"}],
		"post_operative": ["Evitar alimentos duros por 24h"],
		"checklist": ["Isolamento absoluto", "Silano por 60s"],
		"alerts": [],
		"warnings": [],
		"confidence": "média"
	}`)
}
