// Package dispatch maps named MCP tool invocations onto SQL handlers executed
// under an explicit connection and transaction discipline, and normalizes
// every outcome into a uniform success/error envelope.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/alvin/oracle-db-mcp/internal/audit"
	"github.com/alvin/oracle-db-mcp/internal/config"
	"github.com/alvin/oracle-db-mcp/internal/oracle"
	"github.com/alvin/oracle-db-mcp/internal/sqlguard"
)

// ErrUnknownOperation is returned for an operation name outside the catalog.
// Fatal to the request, not the process; raised before any connection is
// borrowed.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation is one catalog entry: the tool schema exposed to callers, the
// transaction policy its handler runs under, an argument parser that runs
// before any connection is borrowed, and the handler itself.
type Operation struct {
	Tool   mcp.Tool
	Policy oracle.TxPolicy

	parse   func(d *Dispatcher, args Args) (any, error)
	execute func(ctx context.Context, d *Dispatcher, q oracle.Querier, params any) (any, *oracle.OpError)
}

// Dispatcher owns the operation catalog and runs invocations against the
// pool. It is injected with its collaborators by the composition root; there
// is no ambient state.
type Dispatcher struct {
	pool     *oracle.Pool
	cfg      *config.Config
	analyzer *sqlguard.Analyzer
	auditor  *audit.Auditor // may be nil

	catalog map[string]*Operation
	order   []string
}

// New builds the dispatcher with the fixed six-operation catalog.
func New(pool *oracle.Pool, cfg *config.Config, auditor *audit.Auditor) *Dispatcher {
	d := &Dispatcher{
		pool:     pool,
		cfg:      cfg,
		analyzer: sqlguard.NewAnalyzer(cfg.Security.DangerKeywords, cfg.Security.DangerKeywordMatch),
		auditor:  auditor,
		catalog:  make(map[string]*Operation),
	}

	d.register(queryOperation(cfg))
	d.register(executeOperation())
	d.register(checkUserExistsOperation())
	d.register(createUserOperation())
	d.register(grantPrivilegesOperation())
	d.register(getTableDataOperation(cfg))

	return d
}

func (d *Dispatcher) register(op *Operation) {
	d.catalog[op.Tool.Name] = op
	d.order = append(d.order, op.Tool.Name)
}

// Operations returns the catalog entries in registration order, for tool
// listing.
func (d *Dispatcher) Operations() []*Operation {
	out := make([]*Operation, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.catalog[name])
	}
	return out
}

// Dispatch looks up the named operation, validates its arguments, then runs
// the handler inside a borrowed, policy-configured connection. Every outcome
// other than an unknown operation name is returned as an envelope; driver
// errors never propagate uncaught.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, rawArgs map[string]any) (*mcp.CallToolResult, error) {
	op, ok := d.catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	args := Args(rawArgs)
	params, err := op.parse(d, args)
	if err != nil {
		// Validation failures abort before any connection is borrowed.
		d.logAudit(name, args, "VALIDATION_ERROR: "+err.Error())
		return errorResult(&oracle.OpError{Message: err.Error()}), nil
	}

	var (
		payload any
		opErr   *oracle.OpError
	)
	err = d.pool.WithConnection(ctx, func(conn *sql.Conn) error {
		return oracle.RunWithPolicy(ctx, conn, op.Policy, func(q oracle.Querier) error {
			payload, opErr = op.execute(ctx, d, q, params)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, oracle.ErrAcquireTimeout) {
			d.logAudit(name, args, "ACQUIRE_TIMEOUT")
			return errorResult(&oracle.OpError{
				Message: err.Error(),
				Hint:    "the connection pool is exhausted; retry after other operations finish",
			}), nil
		}
		d.logAudit(name, args, "EXECUTION_ERROR: "+err.Error())
		return errorResult(oracle.NormalizeError(err, hintFor(name))), nil
	}

	if opErr != nil {
		d.logAudit(name, args, "ERROR: "+opErr.Message)
		if d.cfg.Logging.Verbose {
			log.Printf("[debug] tool=%s status=error", name)
		}
		return errorResult(opErr), nil
	}

	d.logAudit(name, args, "SUCCESS")
	if d.cfg.Logging.Verbose {
		log.Printf("[debug] tool=%s status=ok", name)
	}
	return successResult(payload), nil
}

// logAudit records one tool invocation when auditing is enabled. SQL-carrying
// operations are analyzed for statement type, DDL and configured danger
// keywords; the password argument is never written.
func (d *Dispatcher) logAudit(name string, args Args, status string) {
	if d.auditor == nil {
		return
	}
	entry := audit.Entry{Tool: name, Detail: auditDetail(args), Status: status}
	if sqlText, ok := args["sql"].(string); ok {
		analysis := d.analyzer.Analyze(sqlText)
		entry.StatementType = sqlguard.StatementType(sqlText)
		entry.MatchedKeywords = analysis.MatchedKeywords
		entry.Dangerous = analysis.IsDangerous
		entry.DDL = analysis.IsDDL
	}
	d.auditor.Log(entry)
}

// auditDetail renders the invocation arguments as sorted key=value pairs with
// the password redacted; SQL text is carried verbatim.
func auditDetail(args Args) string {
	if sqlText, ok := args["sql"].(string); ok {
		return sqlText
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "password" {
			pairs = append(pairs, "password=<redacted>")
			continue
		}
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(pairs, " ")
}
