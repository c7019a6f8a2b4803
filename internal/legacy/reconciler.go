package legacy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/repository"
	"github.com/hospmaint/os-manager/internal/service"
)

const (
	// discoveryBackoff is how long to wait before retrying a failed
	// table/column discovery pass.
	discoveryBackoff = 30 * time.Second
	// queryTimeout bounds every query against the legacy file. A
	// timed-out query counts as a failed one.
	queryTimeout = 15 * time.Second
	// originTagFormat is embedded into optionalDescription so a
	// re-polled legacy row finds the order it created earlier even
	// when the OS number was edited by hand.
	originTagFormat = "[shoficina:%s]"
)

// Store is the persistence surface the reconciler merges through. It
// is the same write path manual edits take, which is what makes the
// no-regression rule an effective guard between the two writers.
type Store interface {
	FindByNumberOrTag(ctx context.Context, osNumber, tag string) (uint64, model.Status, error)
	Insert(ctx context.Context, o *model.ServiceOrder) error
	Update(ctx context.Context, id uint64, d model.OrderDelta) error
	GetByID(ctx context.Context, id uint64) (*model.ServiceOrder, error)
}

// columnMap is the discovered legacy column layout. An empty string
// means the column is absent in this installation; every read goes
// through cell(), so absent columns simply yield empty values.
type columnMap struct {
	id           string
	client       string
	equipment    string
	brand        string
	model        string
	serial       string
	patrimony    string
	accessories  string
	defect       string
	observations string
	status       string
	priority     string
	createdAt    string
	completedAt  string
	ready        string
}

// tableBlacklist names legacy tables that are known not to be the
// ticket table, so discovery does not waste probes on them.
var tableBlacklist = map[string]bool{
	"BANCOS": true, "CLIENTES": true, "FORNECEDORES": true, "FUNCIONARIOS": true,
	"USUARIOS": true, "CHEQUES": true, "BOLETOS": true, "CARTOES": true,
	"CONTAS": true, "DESPESAS": true, "DESP_FIXAS": true, "AGENDA": true,
	"CONFIG": true, "PARAMETROS": true, "IBPT": true, "ICMS_EMP": true,
	"ICMS_UF": true, "EMPRESAS": true, "SITUACOES": true, "SERVICOS": true,
	"ITENS": true, "VENDAS": true, "ORCAS": true, "PEDIDOS": true,
	"PLANOS": true, "CONTRATOS": true, "EQUIPAMENTOS": true, "LOGUSER": true,
}

// tableCandidates are probed first, in order, before anything the
// schema listing returned.
var tableCandidates = []string{
	"ORDEMS", "OS", "OrdemServico", "OrdensServico", "ordem_servico",
	"Ordens_Servico", "tblOS", "tblOrdens", "OSTable",
}

// Reconciler polls the legacy source on a fixed interval and merges
// its ticket rows into the primary store without ever regressing
// locally-advanced state. Start and Stop are safe to call repeatedly.
type Reconciler struct {
	src      Source
	store    Store
	bus      service.Broadcaster
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc

	table    string
	cols     columnMap
	lastPoll time.Time
}

// NewReconciler wires a reconciler; interval is the poll cadence.
// The incremental cursor starts at the Unix epoch rather than Go's
// zero time: Jet cannot evaluate a #0001-01-01# literal, and the
// first cycle is meant to take everything the file holds anyway.
func NewReconciler(src Source, store Store, bus service.Broadcaster, log *zap.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{
		src: src, store: store, bus: bus, log: log, interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		lastPoll: time.Unix(0, 0).UTC(),
	}
}

// Start launches the background loop. On hosts where the source is
// unavailable (any non-Windows platform, or no configured path) it
// logs once and does nothing. Calling Start on a running reconciler
// is a no-op.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	if !r.src.Available() {
		r.log.Info("legacy sync disabled: source unavailable on this host")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.log.Info("legacy sync starting", zap.Duration("interval", r.interval))
	go r.run(ctx)
}

// Stop cancels the background loop. Safe to call repeatedly and
// before Start.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// run performs discovery (retrying forever on failure) and then polls
// until the context is cancelled.
func (r *Reconciler) run(ctx context.Context) {
	for {
		table, cols, err := r.discover(ctx)
		if err == nil {
			r.table, r.cols = table, cols
			r.log.Info("legacy ticket table discovered", zap.String("table", table))
			break
		}
		if ctx.Err() != nil {
			return
		}
		r.log.Warn("legacy discovery failed", zap.Duration("retryIn", discoveryBackoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(discoveryBackoff):
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// discover finds the table that looks like the ticket table and
// builds the column map. The schema listing is advisory: when it
// fails, only the candidate names are probed.
func (r *Reconciler) discover(ctx context.Context) (string, columnMap, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	candidates := append([]string(nil), tableCandidates...)
	seen := make(map[string]bool, len(candidates))
	for _, t := range candidates {
		seen[t] = true
	}
	if tables, err := r.src.Tables(qctx); err == nil {
		for _, t := range tables {
			if !tableBlacklist[t] && !seen[t] {
				candidates = append(candidates, t)
				seen[t] = true
			}
		}
	}

	for _, table := range candidates {
		cols, err := r.src.Columns(qctx, table)
		if err != nil || len(cols) == 0 {
			continue
		}
		if !looksLikeTicketTable(cols) {
			continue
		}
		return table, inferColumns(cols), nil
	}
	return "", columnMap{}, errors.New("no ticket-like table found")
}

// looksLikeTicketTable checks the column names against a small
// vocabulary of things a service-order table would carry.
func looksLikeTicketTable(cols []string) bool {
	for _, c := range cols {
		l := strings.ToLower(c)
		if containsAny(l, "cliente", "aparelho", "equipamento", "status", "situac", "defeito") {
			return true
		}
	}
	return false
}

// inferColumns maps the fields the importer needs onto whatever this
// installation calls them. Exact name matches win over substring
// matches; an unmatched field stays empty and reads as absent.
func inferColumns(cols []string) columnMap {
	find := func(terms ...string) string {
		for _, c := range cols {
			for _, t := range terms {
				if strings.EqualFold(c, t) {
					return c
				}
			}
		}
		for _, c := range cols {
			for _, t := range terms {
				if strings.Contains(strings.ToLower(c), strings.ToLower(t)) {
					return c
				}
			}
		}
		return ""
	}
	return columnMap{
		id:           find("CODIGO"),
		client:       find("COD_CLIENTE"),
		equipment:    find("APARELHO"),
		brand:        find("MARCA"),
		model:        find("MODELO"),
		serial:       find("SERIE"),
		patrimony:    find("PATRIMONIO"),
		accessories:  find("ACESSORIO"),
		defect:       find("DEFEITO"),
		observations: find("OBS_SERVICO"),
		status:       find("SITUACAO"),
		priority:     find("PRIOR"),
		createdAt:    find("ENTRADA"),
		completedAt:  find("SAIDA"),
		ready:        find("PRONTO"),
	}
}

// cell reads one mapped column from a row, returning "" when the
// column was never discovered or the value is NULL.
func cell(row map[string]string, col string) string {
	if col == "" {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// poll queries rows changed since the last successful cycle and
// merges each one. Every failure is swallowed: the next tick retries.
func (r *Reconciler) poll(ctx context.Context) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	join, clientExpr := "", "'' AS NOME_CLIENTE"
	if r.cols.client != "" {
		join = fmt.Sprintf(" LEFT JOIN [CLIENTES] C ON C.CODIGO = O.[%s]", r.cols.client)
		clientExpr = "C.NOME AS NOME_CLIENTE"
	}
	var query string
	if r.cols.createdAt != "" {
		// Incremental: only rows entered since the last good cycle.
		since := r.lastPoll.Format("2006-01-02")
		query = fmt.Sprintf("SELECT O.*, %s FROM [%s] O%s WHERE O.[%s] >= #%s#",
			clientExpr, r.table, join, r.cols.createdAt, since)
	} else {
		// No usable date column: take everything, newest first when an
		// id column exists to sort by.
		query = fmt.Sprintf("SELECT O.*, %s FROM [%s] O%s", clientExpr, r.table, join)
		if r.cols.id != "" {
			query += fmt.Sprintf(" ORDER BY O.[%s] DESC", r.cols.id)
		}
	}

	rows, err := r.src.Query(qctx, query)
	if err != nil {
		r.log.Warn("legacy poll failed", zap.Error(err))
		return
	}
	r.lastPoll = r.now()
	for _, row := range rows {
		if err := r.syncRow(ctx, row); err != nil {
			r.log.Warn("legacy row sync failed", zap.Error(err))
		}
	}
}

// syncRow maps one legacy row into the domain and creates or merges
// the corresponding order. Re-running it with unchanged legacy state
// is a no-op.
func (r *Reconciler) syncRow(ctx context.Context, row map[string]string) error {
	extID := cell(row, r.cols.id)
	if extID == "" {
		return nil
	}
	osNumber := extID
	tag := fmt.Sprintf(originTagFormat, extID)

	status := MapStatus(cell(row, r.cols.status), cell(row, r.cols.ready))
	priority := MapPriority(cell(row, r.cols.priority))

	clientName := strings.TrimSpace(row["NOME_CLIENTE"])
	if clientName == "" {
		clientName = cell(row, r.cols.client)
	}
	if clientName == "" {
		clientName = "Cliente SHOficina"
	}
	equipment := composeEquipment(cell(row, r.cols.equipment), cell(row, r.cols.brand), cell(row, r.cols.model))
	accessories := composeAccessories(cell(row, r.cols.accessories), cell(row, r.cols.patrimony))
	serial := cell(row, r.cols.serial)
	defect := cell(row, r.cols.defect)
	obs := cell(row, r.cols.observations)

	id, currentStatus, err := r.store.FindByNumberOrTag(ctx, osNumber, tag)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		imp := importedOrder{
			osNumber: osNumber, tag: tag, clientName: clientName, equipment: equipment,
			serial: serial, accessories: accessories, defect: defect, observations: obs,
			status: status, priority: priority,
		}
		return r.createImported(ctx, imp)
	case err != nil:
		return err
	}

	if currentStatus == status {
		return nil // idempotent no-op, no write, no event
	}
	// A manually completed order is permanently protected from stale
	// legacy state, and the importer may never move progress backward.
	if currentStatus == model.StatusCompleted {
		return nil
	}
	if status.ProgressRank() < currentStatus.ProgressRank() {
		return nil
	}

	now := r.now()
	d := model.OrderDelta{CurrentStatus: &status, UpdatedAt: now}
	if status == model.StatusCompleted {
		t := now
		d.CompletedAt = &t
	}
	if err := r.store.Update(ctx, id, d); err != nil {
		return err
	}
	updated, err := r.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.log.Info("legacy order advanced",
		zap.String("osNumber", osNumber), zap.String("status", string(status)))
	r.bus.OrderUpdated(ctx, updated)
	return nil
}

// importedOrder bundles the mapped fields of a legacy row that has no
// domain counterpart yet.
type importedOrder struct {
	osNumber     string
	tag          string
	clientName   string
	equipment    string
	serial       string
	accessories  string
	defect       string
	observations string
	status       model.Status
	priority     model.Priority
}

func (r *Reconciler) createImported(ctx context.Context, imp importedOrder) error {
	now := r.now()
	desc := imp.tag
	if imp.observations != "" {
		desc += " " + imp.observations
	}
	o := &model.ServiceOrder{
		OSNumber:                  imp.osNumber,
		ClientName:                imp.clientName,
		EquipmentName:             imp.equipment,
		SerialNumber:              imp.serial,
		Accessories:               imp.accessories,
		HasPreviousDefect:         imp.defect != "",
		PreviousDefectDescription: imp.defect,
		OptionalDescription:       desc,
		Priority:                  imp.priority,
		CurrentStatus:             imp.status,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if imp.status == model.StatusCompleted {
		t := now
		o.CompletedAt = &t
	}
	if err := r.store.Insert(ctx, o); err != nil {
		// A concurrent manual creation with the same OS number is
		// not an importer failure; the next cycle will merge.
		if errors.Is(err, repository.ErrDuplicate) {
			r.log.Info("legacy import skipped duplicate", zap.String("osNumber", imp.osNumber))
			return nil
		}
		return err
	}
	r.log.Info("legacy order imported",
		zap.String("osNumber", imp.osNumber), zap.String("client", imp.clientName), zap.String("equipment", imp.equipment))
	r.bus.OrderCreated(ctx, o)
	return nil
}
