package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/alvin/oracle-db-mcp/internal/config"
	"github.com/alvin/oracle-db-mcp/internal/oracle"
	"github.com/alvin/oracle-db-mcp/internal/sqlguard"
)

// Static remediation hints, keyed to the operation kind.
const (
	hintQuery        = "check SQL syntax and table access rights"
	hintExecute      = "check SQL syntax and permissions"
	hintUserLookup   = "check the username and your access to ALL_USERS"
	hintCreateUser   = "check username, password and tablespace names, and CREATE USER privilege"
	hintGrant        = "check privilege names and your GRANT privileges"
	hintGetTableData = "check table name and access rights"
)

// hintFor returns the remediation hint for failures surfaced outside a
// handler (borrow or transaction setup errors).
func hintFor(name string) string {
	switch name {
	case "query":
		return hintQuery
	case "execute":
		return hintExecute
	case "check_user_exists":
		return hintUserLookup
	case "create_user":
		return hintCreateUser
	case "grant_privileges":
		return hintGrant
	case "get_table_data":
		return hintGetTableData
	default:
		return ""
	}
}

// userExists reports whether an Oracle user of that name exists.
func userExists(ctx context.Context, q oracle.Querier, username string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM all_users WHERE username = UPPER(:1)", username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

// ---- query ----

type queryParams struct {
	SQL string
}

func queryOperation(cfg *config.Config) *Operation {
	return &Operation{
		Tool: mcp.NewTool("query",
			mcp.WithDescription(fmt.Sprintf(
				"Run a SQL query inside a read-only transaction that is always rolled back afterwards. "+
					"At most %d rows are returned regardless of the query.", cfg.Limits.MaxQueryRows)),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description("The SQL query to run (typically a SELECT)."),
			),
		),
		Policy: oracle.ReadOnly,
		parse: func(_ *Dispatcher, args Args) (any, error) {
			sqlText, err := args.String("sql")
			if err != nil {
				return nil, err
			}
			return queryParams{SQL: sqlText}, nil
		},
		execute: func(ctx context.Context, d *Dispatcher, q oracle.Querier, params any) (any, *oracle.OpError) {
			p := params.(queryParams)
			rs, err := oracle.QueryRows(ctx, q, p.SQL, d.cfg.Limits.MaxQueryRows)
			if err != nil {
				return nil, oracle.NormalizeError(err, hintQuery)
			}
			return rs, nil
		},
	}
}

// ---- execute ----

type executeParams struct {
	SQL string
}

func executeOperation() *Operation {
	return &Operation{
		Tool: mcp.NewTool("execute",
			mcp.WithDescription("Execute a SQL statement (INSERT, UPDATE, DELETE, DDL). "+
				"Each statement is committed immediately on success."),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description("The SQL statement to execute."),
			),
		),
		Policy: oracle.Autocommit,
		parse: func(_ *Dispatcher, args Args) (any, error) {
			sqlText, err := args.String("sql")
			if err != nil {
				return nil, err
			}
			return executeParams{SQL: sqlText}, nil
		},
		execute: func(ctx context.Context, _ *Dispatcher, q oracle.Querier, params any) (any, *oracle.OpError) {
			p := params.(executeParams)
			rowsAffected, err := oracle.ExecStatement(ctx, q, p.SQL)
			if err != nil {
				return nil, oracle.NormalizeError(err, hintExecute)
			}
			return oracle.NewExecOutcome("Statement executed successfully", rowsAffected), nil
		},
	}
}

// ---- check_user_exists ----

type checkUserParams struct {
	Username string
}

// UserExistence is the check_user_exists payload.
type UserExistence struct {
	Username string `json:"username"`
	Exists   bool   `json:"exists"`
}

func checkUserExistsOperation() *Operation {
	return &Operation{
		Tool: mcp.NewTool("check_user_exists",
			mcp.WithDescription("Check whether an Oracle database user exists."),
			mcp.WithString("username",
				mcp.Required(),
				mcp.Description("The username to look up."),
			),
		),
		Policy: oracle.Autocommit,
		parse: func(_ *Dispatcher, args Args) (any, error) {
			username, err := args.String("username")
			if err != nil {
				return nil, err
			}
			return checkUserParams{Username: username}, nil
		},
		execute: func(ctx context.Context, _ *Dispatcher, q oracle.Querier, params any) (any, *oracle.OpError) {
			p := params.(checkUserParams)
			exists, err := userExists(ctx, q, p.Username)
			if err != nil {
				return nil, oracle.NormalizeError(err, hintUserLookup)
			}
			return UserExistence{Username: strings.ToUpper(p.Username), Exists: exists}, nil
		},
	}
}

// ---- create_user ----

type createUserParams struct {
	Username       string
	Password       string
	Tablespace     string
	TempTablespace string
}

// CreateUserOutcome is the create_user payload.
type CreateUserOutcome struct {
	Message           string `json:"message"`
	Username          string `json:"username"`
	DefaultTablespace string `json:"defaultTablespace"`
	TempTablespace    string `json:"tempTablespace"`
}

func createUserOperation() *Operation {
	return &Operation{
		Tool: mcp.NewTool("create_user",
			mcp.WithDescription("Create a new Oracle database user with default and temporary "+
				"tablespaces and an unlimited quota on the default tablespace. "+
				"Fails without executing anything when the user already exists."),
			mcp.WithString("username",
				mcp.Required(),
				mcp.Description("Name of the user to create."),
			),
			mcp.WithString("password",
				mcp.Required(),
				mcp.Description("Password for the new user."),
			),
			mcp.WithString("tablespace",
				mcp.DefaultString("USERS"),
				mcp.Description("Default tablespace for the new user."),
			),
			mcp.WithString("tempTablespace",
				mcp.DefaultString("TEMP"),
				mcp.Description("Temporary tablespace for the new user."),
			),
		),
		Policy: oracle.Autocommit,
		parse: func(_ *Dispatcher, args Args) (any, error) {
			username, err := args.String("username")
			if err != nil {
				return nil, err
			}
			password, err := args.String("password")
			if err != nil {
				return nil, err
			}
			tablespace, err := args.StringDefault("tablespace", "USERS")
			if err != nil {
				return nil, err
			}
			tempTablespace, err := args.StringDefault("tempTablespace", "TEMP")
			if err != nil {
				return nil, err
			}
			// All identifiers pass the allow-list before any interpolation.
			for _, ident := range []string{username, tablespace, tempTablespace} {
				if err := sqlguard.ValidateIdentifier(ident); err != nil {
					return nil, err
				}
			}
			if err := sqlguard.ValidatePassword(password); err != nil {
				return nil, err
			}
			return createUserParams{
				Username:       strings.ToUpper(username),
				Password:       password,
				Tablespace:     strings.ToUpper(tablespace),
				TempTablespace: strings.ToUpper(tempTablespace),
			}, nil
		},
		execute: func(ctx context.Context, _ *Dispatcher, q oracle.Querier, params any) (any, *oracle.OpError) {
			p := params.(createUserParams)

			exists, err := userExists(ctx, q, p.Username)
			if err != nil {
				return nil, oracle.NormalizeError(err, hintCreateUser)
			}
			if exists {
				return nil, &oracle.OpError{
					Message: fmt.Sprintf("user %s already exists", p.Username),
					Hint:    "choose a different username or drop the existing user first",
				}
			}

			createStmt := fmt.Sprintf(`CREATE USER %s IDENTIFIED BY "%s"`, p.Username, p.Password)
			if _, err := oracle.ExecStatement(ctx, q, createStmt); err != nil {
				return nil, oracle.NormalizeError(err, hintCreateUser)
			}

			// DDL is not transactional: when this step fails the user exists
			// but is misconfigured. Surfaced as a normal error envelope, no
			// compensating DROP USER.
			alterStmt := fmt.Sprintf(
				"ALTER USER %s DEFAULT TABLESPACE %s TEMPORARY TABLESPACE %s QUOTA UNLIMITED ON %s",
				p.Username, p.Tablespace, p.TempTablespace, p.Tablespace)
			if _, err := oracle.ExecStatement(ctx, q, alterStmt); err != nil {
				return nil, oracle.NormalizeError(err,
					fmt.Sprintf("user %s was created but tablespace assignment failed; fix it manually with ALTER USER", p.Username))
			}

			return CreateUserOutcome{
				Message:           fmt.Sprintf("user %s created", p.Username),
				Username:          p.Username,
				DefaultTablespace: p.Tablespace,
				TempTablespace:    p.TempTablespace,
			}, nil
		},
	}
}

// ---- grant_privileges ----

type grantParams struct {
	Username   string
	Privileges []string
}

// GrantResult records the outcome for one requested privilege.
type GrantResult struct {
	Privilege string `json:"privilege"`
	Granted   bool   `json:"granted"`
	Error     string `json:"error,omitempty"`
}

// GrantReport is the grant_privileges payload: one GrantResult per requested
// privilege, in request order.
type GrantReport struct {
	Username string        `json:"username"`
	Results  []GrantResult `json:"results"`
}

func grantPrivilegesOperation() *Operation {
	return &Operation{
		Tool: mcp.NewTool("grant_privileges",
			mcp.WithDescription("Grant a list of privileges to an existing user. Each privilege is "+
				"granted independently; individual failures are reported per privilege "+
				"without aborting the rest."),
			mcp.WithString("username",
				mcp.Required(),
				mcp.Description("The user receiving the grants."),
			),
			mcp.WithArray("privileges",
				mcp.Required(),
				mcp.Description("Privilege strings to grant, e.g. [\"CREATE SESSION\", \"CREATE TABLE\"]."),
				mcp.Items(map[string]any{"type": "string"}),
			),
		),
		Policy: oracle.Autocommit,
		parse: func(_ *Dispatcher, args Args) (any, error) {
			username, err := args.String("username")
			if err != nil {
				return nil, err
			}
			if err := sqlguard.ValidateIdentifier(username); err != nil {
				return nil, err
			}
			privileges, err := args.StringSlice("privileges")
			if err != nil {
				return nil, err
			}
			return grantParams{Username: strings.ToUpper(username), Privileges: privileges}, nil
		},
		execute: func(ctx context.Context, _ *Dispatcher, q oracle.Querier, params any) (any, *oracle.OpError) {
			p := params.(grantParams)

			exists, err := userExists(ctx, q, p.Username)
			if err != nil {
				return nil, oracle.NormalizeError(err, hintGrant)
			}
			if !exists {
				return nil, &oracle.OpError{
					Message: fmt.Sprintf("user %s does not exist", p.Username),
					Hint:    "create the user first with create_user",
				}
			}

			// Failure granularity is per privilege; the envelope itself
			// reports success even when individual grants fail.
			results := make([]GrantResult, 0, len(p.Privileges))
			for _, priv := range p.Privileges {
				if err := sqlguard.ValidatePrivilege(priv); err != nil {
					results = append(results, GrantResult{Privilege: priv, Error: err.Error()})
					continue
				}
				grantStmt := fmt.Sprintf("GRANT %s TO %s", strings.ToUpper(strings.TrimSpace(priv)), p.Username)
				if _, err := oracle.ExecStatement(ctx, q, grantStmt); err != nil {
					results = append(results, GrantResult{Privilege: priv, Error: err.Error()})
					continue
				}
				results = append(results, GrantResult{Privilege: priv, Granted: true})
			}

			return GrantReport{Username: p.Username, Results: results}, nil
		},
	}
}

// ---- get_table_data ----

type tableDataParams struct {
	Table string
	Limit int
}

// TableData is the get_table_data payload.
type TableData struct {
	TableName string `json:"tableName"`
	Owner     string `json:"owner"`
	Limit     int    `json:"limit"`
	*oracle.RowSet
}

func getTableDataOperation(cfg *config.Config) *Operation {
	return &Operation{
		Tool: mcp.NewTool("get_table_data",
			mcp.WithDescription("Fetch sample rows from a table. The table's owning schema is resolved "+
				"automatically; the row limit is bounded by the server's configured ceiling."),
			mcp.WithString("tableName",
				mcp.Required(),
				mcp.Description("Name of the table to read."),
			),
			mcp.WithNumber("limit",
				mcp.DefaultNumber(float64(cfg.Limits.DefaultTableRows)),
				mcp.Description("Maximum number of rows to return."),
			),
		),
		Policy: oracle.ReadOnly,
		parse: func(d *Dispatcher, args Args) (any, error) {
			table, err := args.String("tableName")
			if err != nil {
				return nil, err
			}
			if err := sqlguard.ValidateIdentifier(table); err != nil {
				return nil, err
			}
			limit, err := args.IntDefault("limit", d.cfg.Limits.DefaultTableRows)
			if err != nil {
				return nil, err
			}
			if limit < 1 {
				limit = d.cfg.Limits.DefaultTableRows
			}
			if limit > d.cfg.Limits.MaxQueryRows {
				limit = d.cfg.Limits.MaxQueryRows
			}
			return tableDataParams{Table: strings.ToUpper(table), Limit: limit}, nil
		},
		execute: func(ctx context.Context, _ *Dispatcher, q oracle.Querier, params any) (any, *oracle.OpError) {
			p := params.(tableDataParams)

			owner, err := oracle.ResolveOwner(ctx, q, p.Table)
			if err != nil {
				if errors.Is(err, oracle.ErrTableNotFound) {
					return nil, &oracle.OpError{Message: err.Error(), Hint: hintGetTableData}
				}
				return nil, oracle.NormalizeError(err, hintGetTableData)
			}

			stmt := fmt.Sprintf(`SELECT * FROM "%s"."%s" FETCH FIRST :1 ROWS ONLY`, owner, p.Table)
			rs, err := oracle.QueryRows(ctx, q, stmt, p.Limit, p.Limit)
			if err != nil {
				return nil, oracle.NormalizeError(err, hintGetTableData)
			}

			return TableData{TableName: p.Table, Owner: owner, Limit: p.Limit, RowSet: rs}, nil
		},
	}
}
