package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrTableNotFound is returned when a table name resolves to nothing the
// session user can see.
var ErrTableNotFound = errors.New("table not found or not accessible")

// Table identifies a table visible to the session user.
type Table struct {
	Name  string `json:"tableName"`
	Owner string `json:"owner"`
}

// Column carries the dictionary metadata for one table column.
type Column struct {
	Name      string `json:"name"`
	DataType  string `json:"dataType"`
	Length    int    `json:"length"`
	Precision *int   `json:"precision,omitempty"`
	Scale     *int   `json:"scale,omitempty"`
	Nullable  bool   `json:"nullable"`
	Position  int    `json:"position"`
	Default   string `json:"default,omitempty"`
}

// ForeignKey describes one foreign key column of a table.
type ForeignKey struct {
	Column          string `json:"column"`
	ConstraintName  string `json:"constraintName"`
	ReferencedTable string `json:"referencedTable"`
	ReferencedOwner string `json:"referencedOwner"`
}

// TableSchema is the resource payload for one table.
type TableSchema struct {
	TableName   string       `json:"tableName"`
	Owner       string       `json:"owner"`
	Columns     []Column     `json:"columns"`
	PrimaryKeys []string     `json:"primaryKeys"`
	ForeignKeys []ForeignKey `json:"foreignKeys"`
}

// ListTables returns the tables owned by the session user's current schema,
// ordered by name.
func ListTables(ctx context.Context, q Querier) ([]Table, error) {
	const stmt = `SELECT table_name, owner FROM all_tables
		WHERE owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')
		ORDER BY table_name`

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.Owner); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// ResolveOwner finds the owning schema of a table the session user can see,
// preferring the user's own schema when the name is ambiguous. Returns
// ErrTableNotFound when nothing matches.
func ResolveOwner(ctx context.Context, q Querier, table string) (string, error) {
	const stmt = `SELECT owner FROM all_tables
		WHERE table_name = UPPER(:1)
		ORDER BY CASE WHEN owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') THEN 0 ELSE 1 END
		FETCH FIRST 1 ROWS ONLY`

	var owner string
	err := q.QueryRowContext(ctx, stmt, table).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrTableNotFound, strings.ToUpper(table))
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve table owner: %w", err)
	}
	return owner, nil
}

// DescribeTable builds the schema resource payload for one table from the
// ALL_* dictionary views.
func DescribeTable(ctx context.Context, q Querier, owner, table string) (*TableSchema, error) {
	table = strings.ToUpper(table)
	schema := &TableSchema{
		TableName:   table,
		Owner:       owner,
		Columns:     []Column{},
		PrimaryKeys: []string{},
		ForeignKeys: []ForeignKey{},
	}

	const colStmt = `SELECT column_name, data_type, data_length, data_precision, data_scale,
			nullable, column_id, data_default
		FROM all_tab_columns
		WHERE owner = :1 AND table_name = :2
		ORDER BY column_id`

	rows, err := q.QueryContext(ctx, colStmt, owner, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c          Column
			precision  sql.NullInt64
			scale      sql.NullInt64
			nullable   string
			defaultVal sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.DataType, &c.Length, &precision, &scale,
			&nullable, &c.Position, &defaultVal); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		if precision.Valid {
			v := int(precision.Int64)
			c.Precision = &v
		}
		if scale.Valid {
			v := int(scale.Int64)
			c.Scale = &v
		}
		c.Nullable = nullable == "Y"
		if defaultVal.Valid {
			c.Default = strings.TrimSpace(defaultVal.String)
		}
		schema.Columns = append(schema.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, owner, table)
	}

	const pkStmt = `SELECT acc.column_name
		FROM all_constraints ac
		JOIN all_cons_columns acc
			ON ac.owner = acc.owner AND ac.constraint_name = acc.constraint_name
		WHERE ac.constraint_type = 'P' AND ac.owner = :1 AND ac.table_name = :2
		ORDER BY acc.position`

	pkRows, err := q.QueryContext(ctx, pkStmt, owner, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary keys: %w", err)
	}
	defer pkRows.Close()

	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan primary key row: %w", err)
		}
		schema.PrimaryKeys = append(schema.PrimaryKeys, col)
	}
	if err := pkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating primary keys: %w", err)
	}

	const fkStmt = `SELECT acc.column_name, ac.constraint_name, rc.table_name, rc.owner
		FROM all_constraints ac
		JOIN all_cons_columns acc
			ON ac.owner = acc.owner AND ac.constraint_name = acc.constraint_name
		JOIN all_constraints rc
			ON ac.r_owner = rc.owner AND ac.r_constraint_name = rc.constraint_name
		WHERE ac.constraint_type = 'R' AND ac.owner = :1 AND ac.table_name = :2
		ORDER BY ac.constraint_name, acc.position`

	fkRows, err := q.QueryContext(ctx, fkStmt, owner, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var fk ForeignKey
		if err := fkRows.Scan(&fk.Column, &fk.ConstraintName, &fk.ReferencedTable, &fk.ReferencedOwner); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key row: %w", err)
		}
		schema.ForeignKeys = append(schema.ForeignKeys, fk)
	}
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys: %w", err)
	}

	return schema, nil
}
