package ledger_test

import (
	"context"
	"sync"
	"time"

	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
	"github.com/tu-usuario/pos-ledger/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria para los tests del libro de stock.
//
// fakeStore emula la base de datos; fakeTxRunner emula la transacción con un
// mutex global (equivalente al SELECT ... FOR UPDATE de Postgres: dentro de la
// "transacción" nadie más puede leer-y-escribir la fila) y restaura un snapshot
// del estado si el callback falla, igual que un ROLLBACK.
// ──────────────────────────────────────────────────────────────────────────────

func posKey(productID, pointOfSaleID string) string {
	return productID + "|" + pointOfSaleID
}

type fakeStore struct {
	mu        sync.Mutex
	positions map[string]*entity.StockPosition // clave producto|punto de venta
	movements []*entity.MovementRecord
	sales     map[string]*entity.Sale
	returns   []*entity.SaleReturn
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		positions: make(map[string]*entity.StockPosition),
		sales:     make(map[string]*entity.Sale),
	}
}

func clonePosition(p *entity.StockPosition) *entity.StockPosition {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// snapshot copia el estado mutable; restore lo repone tras un fallo del callback.
func (s *fakeStore) snapshot() *fakeStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := newFakeStore()
	for k, v := range s.positions {
		snap.positions[k] = clonePosition(v)
	}
	snap.movements = append([]*entity.MovementRecord(nil), s.movements...)
	for k, v := range s.sales {
		cp := *v
		snap.sales[k] = &cp
	}
	snap.returns = append([]*entity.SaleReturn(nil), s.returns...)
	return snap
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = snap.positions
	s.movements = snap.movements
	s.sales = snap.sales
	s.returns = snap.returns
}

// ── repositorio de posiciones ────────────────────────────────────────────────

type fakePositionRepo struct{ store *fakeStore }

var _ repository.StockPositionRepository = (*fakePositionRepo)(nil)

func (r *fakePositionRepo) Get(_ context.Context, productID, pointOfSaleID string) (*entity.StockPosition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return clonePosition(r.store.positions[posKey(productID, pointOfSaleID)]), nil
}

func (r *fakePositionRepo) GetForUpdate(ctx context.Context, productID, pointOfSaleID string) (*entity.StockPosition, error) {
	return r.Get(ctx, productID, pointOfSaleID)
}

func (r *fakePositionRepo) Create(_ context.Context, p *entity.StockPosition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := posKey(p.ProductID, p.PointOfSaleID)
	if _, ok := r.store.positions[key]; ok {
		return domain.ErrAlreadyAssigned
	}
	r.store.positions[key] = clonePosition(p)
	return nil
}

func (r *fakePositionRepo) UpdateQuantity(_ context.Context, id string, quantity int, updatedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.positions {
		if p.ID == id {
			p.Quantity = quantity
			p.UpdatedAt = updatedAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakePositionRepo) SetActive(_ context.Context, id string, active bool, updatedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.positions {
		if p.ID == id {
			p.IsActive = active
			p.UpdatedAt = updatedAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakePositionRepo) ListByPointOfSale(_ context.Context, pointOfSaleID string, limit, offset int) ([]*entity.StockPosition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.StockPosition
	for _, p := range r.store.positions {
		if p.PointOfSaleID == pointOfSaleID {
			out = append(out, clonePosition(p))
		}
	}
	return out, nil
}

func (r *fakePositionRepo) ListByProduct(_ context.Context, productID string) ([]*entity.StockPosition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.StockPosition
	for _, p := range r.store.positions {
		if p.ProductID == productID {
			out = append(out, clonePosition(p))
		}
	}
	return out, nil
}

// ── repositorio de movimientos ───────────────────────────────────────────────

type fakeMovementRepo struct{ store *fakeStore }

var _ repository.MovementRecordRepository = (*fakeMovementRepo)(nil)

func (r *fakeMovementRepo) Create(_ context.Context, m *entity.MovementRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *m
	r.store.movements = append(r.store.movements, &cp)
	return nil
}

func (r *fakeMovementRepo) matches(m *entity.MovementRecord, f repository.MovementFilter) bool {
	if f.ProductID != "" && m.ProductID != f.ProductID {
		return false
	}
	if f.PointOfSaleID != "" && m.PointOfSaleID != f.PointOfSaleID {
		return false
	}
	if f.From != nil && m.RecordedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && m.RecordedAt.After(*f.To) {
		return false
	}
	return true
}

func (r *fakeMovementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.MovementRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var all []*entity.MovementRecord
	for _, m := range r.store.movements {
		if r.matches(m, f) {
			cp := *m
			all = append(all, &cp)
		}
	}
	if f.Offset >= len(all) {
		return nil, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, nil
}

func (r *fakeMovementRepo) Count(_ context.Context, f repository.MovementFilter) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for _, m := range r.store.movements {
		if r.matches(m, f) {
			n++
		}
	}
	return n, nil
}

func (r *fakeMovementRepo) SumChangesByPosition(_ context.Context, positionID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sum := 0
	for _, m := range r.store.movements {
		if m.PositionID == positionID {
			sum += m.QuantityChange
		}
	}
	return sum, nil
}

// ── repositorios de ventas y devoluciones ────────────────────────────────────

type fakeSaleRepo struct{ store *fakeStore }

var _ repository.SaleRepository = (*fakeSaleRepo)(nil)

func (r *fakeSaleRepo) Create(_ context.Context, s *entity.Sale) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *s
	r.store.sales[s.ID] = &cp
	return nil
}

func (r *fakeSaleRepo) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sales[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSaleRepo) UpdatePhotoPath(_ context.Context, id, path string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sales[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.PhotoPath = path
	return nil
}

type fakeReturnRepo struct{ store *fakeStore }

var _ repository.SaleReturnRepository = (*fakeReturnRepo)(nil)

func (r *fakeReturnRepo) Create(_ context.Context, ret *entity.SaleReturn) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *ret
	r.store.returns = append(r.store.returns, &cp)
	return nil
}

func (r *fakeReturnRepo) TotalReturnedBySale(_ context.Context, saleID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	total := 0
	for _, ret := range r.store.returns {
		if ret.SaleID == saleID {
			total += ret.Quantity
		}
	}
	return total, nil
}

// ── transacciones ────────────────────────────────────────────────────────────

type fakeTxRunner struct {
	store *fakeStore
	txMu  sync.Mutex
}

var _ ledger.TxRunner = (*fakeTxRunner)(nil)

func (tr *fakeTxRunner) Run(_ context.Context, fn func(
	posRepo repository.StockPositionRepository,
	movRepo repository.MovementRecordRepository,
	saleRepo repository.SaleRepository,
	returnRepo repository.SaleReturnRepository,
) error) error {
	tr.txMu.Lock()
	defer tr.txMu.Unlock()
	snap := tr.store.snapshot()
	err := fn(
		&fakePositionRepo{store: tr.store},
		&fakeMovementRepo{store: tr.store},
		&fakeSaleRepo{store: tr.store},
		&fakeReturnRepo{store: tr.store},
	)
	if err != nil {
		tr.store.restore(snap)
		return err
	}
	return nil
}

// ── colaboradores externos ───────────────────────────────────────────────────

type fakeDirectory struct {
	missingProducts  map[string]bool
	inactiveProducts map[string]bool
	missingPOS       map[string]bool
	inactivePOS      map[string]bool
	unavailablePay   map[string]bool
	deniedActors     map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		missingProducts:  make(map[string]bool),
		inactiveProducts: make(map[string]bool),
		missingPOS:       make(map[string]bool),
		inactivePOS:      make(map[string]bool),
		unavailablePay:   make(map[string]bool),
		deniedActors:     make(map[string]bool),
	}
}

func (d *fakeDirectory) ProductStatus(_ context.Context, productID string) (bool, bool, error) {
	if d.missingProducts[productID] {
		return false, false, nil
	}
	return true, !d.inactiveProducts[productID], nil
}

func (d *fakeDirectory) PointOfSaleStatus(_ context.Context, pointOfSaleID string) (bool, bool, error) {
	if d.missingPOS[pointOfSaleID] {
		return false, false, nil
	}
	return true, !d.inactivePOS[pointOfSaleID], nil
}

func (d *fakeDirectory) AvailableAt(_ context.Context, paymentMethodID, _ string) (bool, error) {
	return !d.unavailablePay[paymentMethodID], nil
}

func (d *fakeDirectory) CanOperateAt(_ context.Context, actorID, _ string) (bool, error) {
	return !d.deniedActors[actorID], nil
}

type fakeIdemGuard struct {
	mu   sync.Mutex
	seen map[string]bool
	fail error // si no es nil, Acquire devuelve el error
}

func newFakeIdemGuard() *fakeIdemGuard {
	return &fakeIdemGuard{seen: make(map[string]bool)}
}

func (g *fakeIdemGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return false, g.fail
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

type fakePhotoStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	fail  error
}

func newFakePhotoStore() *fakePhotoStore {
	return &fakePhotoStore{saved: make(map[string][]byte)}
}

func (s *fakePhotoStore) Save(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.saved[name] = data
	return name + ".jpg", nil
}

type fakeEventPublisher struct {
	mu        sync.Mutex
	published []ledger.MovementRecordedEvent
	fail      error
}

func (p *fakeEventPublisher) PublishMovementRecorded(_ context.Context, ev ledger.MovementRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, ev)
	return nil
}

// ── ambiente de prueba ───────────────────────────────────────────────────────

type testEnv struct {
	store       *fakeStore
	posRepo     *fakePositionRepo
	movRepo     *fakeMovementRepo
	saleRepo    *fakeSaleRepo
	returnRepo  *fakeReturnRepo
	txRunner    *fakeTxRunner
	directory   *fakeDirectory
	idem        *fakeIdemGuard
	photos      *fakePhotoStore
	events      *fakeEventPublisher
	validator   *ledger.StockValidator
	assignments *ledger.AssignmentManager
	coordinator *ledger.TransactionCoordinator
	movements   *ledger.MovementQuery
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	env := &testEnv{
		store:      store,
		posRepo:    &fakePositionRepo{store: store},
		movRepo:    &fakeMovementRepo{store: store},
		saleRepo:   &fakeSaleRepo{store: store},
		returnRepo: &fakeReturnRepo{store: store},
		txRunner:   &fakeTxRunner{store: store},
		directory:  newFakeDirectory(),
		idem:       newFakeIdemGuard(),
		photos:     newFakePhotoStore(),
		events:     &fakeEventPublisher{},
	}
	log := logger.Nop()
	env.validator = ledger.NewStockValidator(env.posRepo)
	env.assignments = ledger.NewAssignmentManager(env.txRunner, env.posRepo, env.directory, env.directory, log)
	env.coordinator = ledger.NewTransactionCoordinator(ledger.CoordinatorDeps{
		TxRunner:     env.txRunner,
		PositionRepo: env.posRepo,
		SaleRepo:     env.saleRepo,
		ReturnRepo:   env.returnRepo,
		Validator:    env.validator,
		Recorder:     ledger.NewMovementRecorder(),
		Products:     env.directory,
		PointsOfSale: env.directory,
		Payments:     env.directory,
		Authorizer:   env.directory,
		Photos:       env.photos,
		Idem:         env.idem,
		Events:       env.events,
		Log:          log,
	})
	env.movements = ledger.NewMovementQuery(env.movRepo, env.posRepo)
	return env
}

// seedPosition crea una posición activa con la cantidad indicada, sin pasar por
// el flujo de asignación.
func (env *testEnv) seedPosition(productID, pointOfSaleID string, quantity int) *entity.StockPosition {
	now := time.Now()
	pos := &entity.StockPosition{
		ID:            "pos-" + productID + "-" + pointOfSaleID,
		ProductID:     productID,
		PointOfSaleID: pointOfSaleID,
		Quantity:      quantity,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	env.store.mu.Lock()
	env.store.positions[posKey(productID, pointOfSaleID)] = pos
	env.store.mu.Unlock()
	return pos
}
