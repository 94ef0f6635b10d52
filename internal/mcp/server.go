// Package mcp wires the tool catalog and table-schema resources into a Model
// Context Protocol server over stdio.
package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/alvin/oracle-db-mcp/internal/audit"
	"github.com/alvin/oracle-db-mcp/internal/config"
	"github.com/alvin/oracle-db-mcp/internal/dispatch"
	"github.com/alvin/oracle-db-mcp/internal/oracle"
	"github.com/alvin/oracle-db-mcp/internal/sqlguard"
)

const (
	serverName    = "oracle-db-mcp"
	serverVersion = "1.0.0"
)

// Server owns the MCP protocol surface: the six tools from the dispatch
// catalog and one schema resource per table visible to the session user.
type Server struct {
	cfg        *config.Config
	desc       *config.Descriptor
	pool       *oracle.Pool
	dispatcher *dispatch.Dispatcher
	auditor    *audit.Auditor
	mcp        *server.MCPServer
}

// NewServer creates the MCP server around an initialized pool.
func NewServer(cfg *config.Config, desc *config.Descriptor, pool *oracle.Pool) (*Server, error) {
	var auditor *audit.Auditor
	if cfg.Logging.AuditLog {
		logPath := cfg.Logging.LogFile
		if cfg.ConfigPath != "" && !filepath.IsAbs(logPath) {
			logPath = filepath.Join(filepath.Dir(cfg.ConfigPath), logPath)
		}
		var err error
		auditor, err = audit.NewAuditor(logPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create auditor: %w", err)
		}
	}

	s := &Server{
		cfg:        cfg,
		desc:       desc,
		pool:       pool,
		dispatcher: dispatch.New(pool, cfg, auditor),
		auditor:    auditor,
		mcp: server.NewMCPServer(serverName, serverVersion,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, true),
			server.WithLogging(),
			server.WithRecovery(),
		),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves MCP over stdio until the context is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// Close cleans up server resources.
func (s *Server) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.auditor != nil {
		s.auditor.Close()
	}
}

// registerTools exposes every catalog operation as an MCP tool backed by the
// dispatcher.
func (s *Server) registerTools() {
	for _, op := range s.dispatcher.Operations() {
		s.mcp.AddTool(op.Tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return s.dispatcher.Dispatch(ctx, req.Params.Name, req.GetArguments())
		})
	}
}

// registerResources discovers the session user's tables and registers one
// schema resource per table, plus a template covering tables created after
// startup. Discovery failure is logged, not fatal; the tools still work.
func (s *Server) registerResources() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var tables []oracle.Table
	err := s.pool.WithConnection(ctx, func(conn *sql.Conn) error {
		var listErr error
		tables, listErr = oracle.ListTables(ctx, conn)
		return listErr
	})
	if err != nil {
		log.Printf("oracle-db-mcp: table discovery for resources failed: %v", err)
	}

	for _, t := range tables {
		s.mcp.AddResource(mcp.NewResource(
			s.schemaURI(t.Name),
			t.Name,
			mcp.WithResourceDescription(fmt.Sprintf("Column, primary key and foreign key metadata for table %s.%s", t.Owner, t.Name)),
			mcp.WithMIMEType("application/json"),
		), s.readSchemaResource)
	}

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate(
		s.schemaURI("{tableName}"),
		"table schema",
		mcp.WithTemplateDescription("Schema metadata for any table visible to the connected user."),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readSchemaResource)
}

// schemaURI builds the resource identifier for one table. The password never
// appears here.
func (s *Server) schemaURI(table string) string {
	return fmt.Sprintf("oracle://%s/%s/schema", s.desc.Redacted(), table)
}

// readSchemaResource serves a resources/read request for a table schema.
func (s *Server) readSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	table, err := tableFromURI(req.Params.URI)
	if err != nil {
		return nil, err
	}

	var schema *oracle.TableSchema
	err = s.pool.WithConnection(ctx, func(conn *sql.Conn) error {
		owner, resolveErr := oracle.ResolveOwner(ctx, conn, table)
		if resolveErr != nil {
			return resolveErr
		}
		var descErr error
		schema, descErr = oracle.DescribeTable(ctx, conn, owner, table)
		return descErr
	})
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize table schema: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// tableFromURI extracts the table name from
// oracle://user@host:port/service/TABLE/schema and validates it against the
// identifier allow-list before it reaches the dictionary queries.
func tableFromURI(uri string) (string, error) {
	if !strings.HasSuffix(uri, "/schema") {
		return "", fmt.Errorf("unsupported resource URI: %s", uri)
	}
	trimmed := strings.TrimSuffix(uri, "/schema")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return "", fmt.Errorf("unsupported resource URI: %s", uri)
	}
	table := trimmed[idx+1:]
	if err := sqlguard.ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name in resource URI: %w", err)
	}
	return table, nil
}
