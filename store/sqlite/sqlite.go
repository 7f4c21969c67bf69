/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (CatalogStore, BalanceStore,
  RequestStore, Directory, HolidayCalendar) using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  personnel:              Directory records plus the attribute columns the
                          condition evaluator reads
  leave_categories:       Leave category definitions
  renewal_rules:          Renewal triggers (yearly/anniversary/monthly)
  policy_tiers:           Tenure accrual step function
  eligibility_conditions: Declarative eligibility rules
  balance_ledger:         Per person/category/year quota rows
  leave_requests:         Request state machine rows
  holidays:               Public holiday calendar

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Per-key serialization of
  read-check-write sequences lives in leave.Ledger; FinalizeApproval is
  the one composite write here and runs in a single database transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

ATTRIBUTE ACCESS:
  PersonnelAttribute backs the closed attribute registry used by the
  condition evaluator. Column names are matched against a whitelist
  switch and never interpolated into SQL.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ leave.CatalogStore    = (*Store)(nil)
	_ leave.BalanceStore    = (*Store)(nil)
	_ leave.RequestStore    = (*Store)(nil)
	_ leave.Directory       = (*Store)(nil)
	_ leave.HolidayCalendar = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS personnel (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		termination_date TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		employment_type TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		marital_status TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS renewal_rules (
		id TEXT PRIMARY KEY,
		renewal_type TEXT NOT NULL,
		trigger_month INTEGER NOT NULL DEFAULT 0,
		trigger_day INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS leave_categories (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		method TEXT NOT NULL,
		renewal_rule_id TEXT NOT NULL DEFAULT '',
		event_based INTEGER NOT NULL DEFAULT 0,
		max_days INTEGER NOT NULL DEFAULT 0,
		requires_approval INTEGER NOT NULL DEFAULT 1,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS policy_tiers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_id TEXT NOT NULL,
		min_years INTEGER NOT NULL,
		days_per_year TEXT NOT NULL,
		effective_from TEXT NOT NULL DEFAULT '',
		effective_to TEXT NOT NULL DEFAULT '',
		carry_forward INTEGER NOT NULL DEFAULT 0,
		max_carryover TEXT NOT NULL DEFAULT '0'
	);
	CREATE INDEX IF NOT EXISTS idx_tiers_category ON policy_tiers(category_id, min_years);

	CREATE TABLE IF NOT EXISTS eligibility_conditions (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		source_table TEXT NOT NULL,
		source_column TEXT NOT NULL,
		data_type TEXT NOT NULL,
		operator TEXT NOT NULL,
		required_value TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_conditions_category ON eligibility_conditions(category_id, position);

	CREATE TABLE IF NOT EXISTS balance_ledger (
		personnel_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_days INTEGER NOT NULL,
		used_days INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (personnel_id, category_id, year)
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		personnel_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		work_days INTEGER NOT NULL DEFAULT 0,
		total_days INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		approved_by TEXT,
		decided_at TEXT,
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_personnel ON leave_requests(personnel_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_range ON leave_requests(personnel_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		recurring INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all tables. Dev and demo use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"leave_requests", "balance_ledger", "eligibility_conditions",
		"policy_tiers", "leave_categories", "renewal_rules", "holidays", "personnel",
	}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("failed to reset %s: %w", t, err)
		}
	}
	return nil
}

func fmtDate(d leave.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parseDate(s string) leave.Date {
	if s == "" {
		return leave.Date{}
	}
	d, err := leave.ParseDate(s)
	if err != nil {
		return leave.Date{}
	}
	return d
}

// =============================================================================
// PERSONNEL (leave.Directory interface + seeding)
// =============================================================================

// SavePersonnel upserts a directory record. The engine only reads personnel;
// this exists for seeding and demos.
func (s *Store) SavePersonnel(ctx context.Context, p leave.Personnel, employmentType, gender, maritalStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var term any
	if p.TerminationDate != nil {
		term = p.TerminationDate.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personnel (id, name, hire_date, termination_date, active, employment_type, gender, marital_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hire_date = excluded.hire_date,
			termination_date = excluded.termination_date,
			active = excluded.active,
			employment_type = excluded.employment_type,
			gender = excluded.gender,
			marital_status = excluded.marital_status`,
		p.ID, p.Name, p.HireDate.String(), term, boolInt(p.Active),
		employmentType, gender, maritalStatus, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save personnel: %w", err)
	}
	return nil
}

func (s *Store) Personnel(ctx context.Context, id leave.PersonnelID) (*leave.Personnel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, hire_date, termination_date, active
		FROM personnel WHERE id = ?`, id)

	var (
		p        leave.Personnel
		hireDate string
		termDate sql.NullString
		active   int
	)
	if err := row.Scan(&p.ID, &p.Name, &hireDate, &termDate, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, leave.ErrPersonnelNotFound
		}
		return nil, fmt.Errorf("failed to load personnel: %w", err)
	}
	p.HireDate = parseDate(hireDate)
	if termDate.Valid && termDate.String != "" {
		d := parseDate(termDate.String)
		p.TerminationDate = &d
	}
	p.Active = active != 0
	return &p, nil
}

func (s *Store) IsActive(ctx context.Context, id leave.PersonnelID) (bool, error) {
	p, err := s.Personnel(ctx, id)
	if err != nil {
		return false, err
	}
	return p.Active, nil
}

func (s *Store) TenureOf(ctx context.Context, id leave.PersonnelID, asOf leave.Date) (leave.Tenure, error) {
	p, err := s.Personnel(ctx, id)
	if err != nil {
		return leave.Tenure{}, err
	}
	return leave.TenureBetween(p.HireDate, asOf), nil
}

func (s *Store) HireAnniversary(ctx context.Context, id leave.PersonnelID) (int, int, error) {
	p, err := s.Personnel(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return int(p.HireDate.Month()), p.HireDate.Day(), nil
}

func (s *Store) ListActive(ctx context.Context) ([]leave.Personnel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, hire_date, termination_date, active
		FROM personnel WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list personnel: %w", err)
	}
	defer rows.Close()

	var result []leave.Personnel
	for rows.Next() {
		var (
			p        leave.Personnel
			hireDate string
			termDate sql.NullString
			active   int
		)
		if err := rows.Scan(&p.ID, &p.Name, &hireDate, &termDate, &active); err != nil {
			return nil, err
		}
		p.HireDate = parseDate(hireDate)
		if termDate.Valid && termDate.String != "" {
			d := parseDate(termDate.String)
			p.TerminationDate = &d
		}
		p.Active = active != 0
		result = append(result, p)
	}
	return result, rows.Err()
}

// PersonnelAttribute serves the closed attribute registry. The column is
// checked against a whitelist; anything else is an unknown attribute.
func (s *Store) PersonnelAttribute(ctx context.Context, id leave.PersonnelID, column string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var query string
	switch strings.ToLower(column) {
	case "employment_type":
		query = `SELECT employment_type FROM personnel WHERE id = ?`
	case "gender":
		query = `SELECT gender FROM personnel WHERE id = ?`
	case "marital_status":
		query = `SELECT marital_status FROM personnel WHERE id = ?`
	case "hire_date":
		query = `SELECT hire_date FROM personnel WHERE id = ?`
	case "active":
		query = `SELECT CASE active WHEN 1 THEN 'true' ELSE 'false' END FROM personnel WHERE id = ?`
	default:
		return "", fmt.Errorf("%w: personnel.%s", leave.ErrUnknownAttribute, column)
	}

	var value string
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", leave.ErrNoAttributeRecord
		}
		return "", fmt.Errorf("failed to load attribute: %w", err)
	}
	return value, nil
}

// =============================================================================
// CATALOG STORE (leave.CatalogStore interface)
// =============================================================================

func (s *Store) SaveCategory(ctx context.Context, cat leave.LeaveCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_categories (id, code, name, method, renewal_rule_id, event_based, max_days, requires_approval, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			method = excluded.method,
			renewal_rule_id = excluded.renewal_rule_id,
			event_based = excluded.event_based,
			max_days = excluded.max_days,
			requires_approval = excluded.requires_approval,
			active = excluded.active`,
		cat.ID, cat.Code, cat.Name, cat.Method, cat.RenewalRuleID,
		boolInt(cat.EventBased), cat.MaxDays, boolInt(cat.RequiresApproval), boolInt(cat.Active),
	)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

func (s *Store) Category(ctx context.Context, id leave.CategoryID) (*leave.LeaveCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, method, renewal_rule_id, event_based, max_days, requires_approval, active
		FROM leave_categories WHERE id = ?`, id)

	cat, err := scanCategory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, leave.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return cat, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]leave.LeaveCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, method, renewal_rule_id, event_based, max_days, requires_approval, active
		FROM leave_categories ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var result []leave.LeaveCategory
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cat)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(row scanner) (*leave.LeaveCategory, error) {
	var (
		cat                                      leave.LeaveCategory
		eventBased, maxDays, reqApproval, active int
	)
	err := row.Scan(&cat.ID, &cat.Code, &cat.Name, &cat.Method, &cat.RenewalRuleID,
		&eventBased, &maxDays, &reqApproval, &active)
	if err != nil {
		return nil, err
	}
	cat.EventBased = eventBased != 0
	cat.MaxDays = maxDays
	cat.RequiresApproval = reqApproval != 0
	cat.Active = active != 0
	return &cat, nil
}

func (s *Store) SaveRenewalRule(ctx context.Context, rule leave.RenewalRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO renewal_rules (id, renewal_type, trigger_month, trigger_day)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			renewal_type = excluded.renewal_type,
			trigger_month = excluded.trigger_month,
			trigger_day = excluded.trigger_day`,
		rule.ID, rule.Type, int(rule.TriggerMonth), rule.TriggerDay,
	)
	if err != nil {
		return fmt.Errorf("failed to save renewal rule: %w", err)
	}
	return nil
}

func (s *Store) CategoriesWithRenewal(ctx context.Context, rt leave.RenewalType) ([]leave.RenewalBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.code, c.name, c.method, c.renewal_rule_id, c.event_based, c.max_days, c.requires_approval, c.active,
		       r.id, r.renewal_type, r.trigger_month, r.trigger_day
		FROM leave_categories c
		JOIN renewal_rules r ON r.id = c.renewal_rule_id
		WHERE c.active = 1 AND r.renewal_type = ?
		ORDER BY c.code`, rt)
	if err != nil {
		return nil, fmt.Errorf("failed to list renewal categories: %w", err)
	}
	defer rows.Close()

	var result []leave.RenewalBinding
	for rows.Next() {
		var (
			cat                                      leave.LeaveCategory
			eventBased, maxDays, reqApproval, active int
			rule                                     leave.RenewalRule
			month                                    int
		)
		err := rows.Scan(&cat.ID, &cat.Code, &cat.Name, &cat.Method, &cat.RenewalRuleID,
			&eventBased, &maxDays, &reqApproval, &active,
			&rule.ID, &rule.Type, &month, &rule.TriggerDay)
		if err != nil {
			return nil, err
		}
		cat.EventBased = eventBased != 0
		cat.MaxDays = maxDays
		cat.RequiresApproval = reqApproval != 0
		cat.Active = active != 0
		rule.TriggerMonth = time.Month(month)
		result = append(result, leave.RenewalBinding{Category: cat, Rule: rule})
	}
	return result, rows.Err()
}

func (s *Store) SaveTier(ctx context.Context, tier leave.PolicyTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policy_tiers (category_id, min_years, days_per_year, effective_from, effective_to, carry_forward, max_carryover)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tier.CategoryID, tier.MinYears, tier.DaysPerYear.String(),
		fmtDate(tier.EffectiveFrom), fmtDate(tier.EffectiveTo),
		boolInt(tier.CarryForward), tier.MaxCarryover.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save tier: %w", err)
	}
	return nil
}

func (s *Store) Tiers(ctx context.Context, id leave.CategoryID, asOf leave.Date) ([]leave.PolicyTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, min_years, days_per_year, effective_from, effective_to, carry_forward, max_carryover
		FROM policy_tiers WHERE category_id = ? ORDER BY min_years ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiers: %w", err)
	}
	defer rows.Close()

	var result []leave.PolicyTier
	for rows.Next() {
		var (
			tier              leave.PolicyTier
			daysStr, carryStr string
			fromStr, toStr    string
			carryForward      int
		)
		err := rows.Scan(&tier.CategoryID, &tier.MinYears, &daysStr, &fromStr, &toStr, &carryForward, &carryStr)
		if err != nil {
			return nil, err
		}
		tier.DaysPerYear = mustDecimal(daysStr)
		tier.MaxCarryover = mustDecimal(carryStr)
		tier.EffectiveFrom = parseDate(fromStr)
		tier.EffectiveTo = parseDate(toStr)
		tier.CarryForward = carryForward != 0
		if tier.InEffect(asOf) {
			result = append(result, tier)
		}
	}
	return result, rows.Err()
}

func (s *Store) SaveCondition(ctx context.Context, cond leave.EligibilityCondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eligibility_conditions (id, category_id, source_table, source_column, data_type, operator, required_value, error_message, active, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM eligibility_conditions WHERE category_id = ?))
		ON CONFLICT(id) DO UPDATE SET
			source_table = excluded.source_table,
			source_column = excluded.source_column,
			data_type = excluded.data_type,
			operator = excluded.operator,
			required_value = excluded.required_value,
			error_message = excluded.error_message,
			active = excluded.active`,
		cond.ID, cond.CategoryID, cond.SourceTable, cond.SourceColumn,
		cond.DataType, cond.Operator, cond.RequiredValue, cond.ErrorMessage,
		boolInt(cond.Active), cond.CategoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to save condition: %w", err)
	}
	return nil
}

func (s *Store) Conditions(ctx context.Context, id leave.CategoryID) ([]leave.EligibilityCondition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, source_table, source_column, data_type, operator, required_value, error_message, active
		FROM eligibility_conditions
		WHERE category_id = ? AND active = 1
		ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conditions: %w", err)
	}
	defer rows.Close()

	var result []leave.EligibilityCondition
	for rows.Next() {
		var (
			cond   leave.EligibilityCondition
			active int
		)
		err := rows.Scan(&cond.ID, &cond.CategoryID, &cond.SourceTable, &cond.SourceColumn,
			&cond.DataType, &cond.Operator, &cond.RequiredValue, &cond.ErrorMessage, &active)
		if err != nil {
			return nil, err
		}
		cond.Active = active != 0
		result = append(result, cond)
	}
	return result, rows.Err()
}

// =============================================================================
// BALANCE STORE (leave.BalanceStore interface)
// =============================================================================

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) Entry(ctx context.Context, key leave.LedgerKey) (*leave.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry(ctx, s.db, key)
}

func (s *Store) entry(ctx context.Context, db querier, key leave.LedgerKey) (*leave.LedgerEntry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT total_days, used_days, updated_at
		FROM balance_ledger
		WHERE personnel_id = ? AND category_id = ? AND year = ?`,
		key.PersonnelID, key.CategoryID, key.Year)

	var (
		entry     leave.LedgerEntry
		updatedAt string
	)
	if err := row.Scan(&entry.TotalDays, &entry.UsedDays, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}
	entry.Key = key
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &entry, nil
}

func (s *Store) EnsureEntry(ctx context.Context, key leave.LedgerKey, totalDays int) (*leave.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureEntry(ctx, s.db, key, totalDays); err != nil {
		return nil, err
	}
	return s.entry(ctx, s.db, key)
}

func (s *Store) ensureEntry(ctx context.Context, db querier, key leave.LedgerKey, totalDays int) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO balance_ledger (personnel_id, category_id, year, total_days, used_days, updated_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		key.PersonnelID, key.CategoryID, key.Year, totalDays, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure ledger entry: %w", err)
	}
	return nil
}

func (s *Store) AddUsed(ctx context.Context, key leave.LedgerKey, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUsed(ctx, s.db, key, days)
}

func (s *Store) addUsed(ctx context.Context, db querier, key leave.LedgerKey, days int) error {
	res, err := db.ExecContext(ctx, `
		UPDATE balance_ledger
		SET used_days = used_days + ?, updated_at = ?
		WHERE personnel_id = ? AND category_id = ? AND year = ?`,
		days, time.Now().UTC().Format(time.RFC3339),
		key.PersonnelID, key.CategoryID, key.Year,
	)
	if err != nil {
		return fmt.Errorf("failed to debit ledger entry: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return leave.ErrNoBalanceRecord
	}
	return nil
}

func (s *Store) SetEntry(ctx context.Context, key leave.LedgerKey, totalDays, usedDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balance_ledger (personnel_id, category_id, year, total_days, used_days, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(personnel_id, category_id, year) DO UPDATE SET
			total_days = excluded.total_days,
			used_days = excluded.used_days,
			updated_at = excluded.updated_at`,
		key.PersonnelID, key.CategoryID, key.Year, totalDays, usedDays,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to set ledger entry: %w", err)
	}
	return nil
}

func (s *Store) EntriesForCategory(ctx context.Context, id leave.CategoryID, year int) ([]leave.LedgerEntry, error) {
	return s.queryEntries(ctx, `
		SELECT personnel_id, category_id, year, total_days, used_days, updated_at
		FROM balance_ledger WHERE category_id = ? AND year = ? ORDER BY personnel_id`, id, year)
}

func (s *Store) EntriesForPersonnel(ctx context.Context, id leave.PersonnelID, year int) ([]leave.LedgerEntry, error) {
	return s.queryEntries(ctx, `
		SELECT personnel_id, category_id, year, total_days, used_days, updated_at
		FROM balance_ledger WHERE personnel_id = ? AND year = ? ORDER BY category_id`, id, year)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]leave.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var result []leave.LedgerEntry
	for rows.Next() {
		var (
			entry     leave.LedgerEntry
			updatedAt string
		)
		err := rows.Scan(&entry.Key.PersonnelID, &entry.Key.CategoryID, &entry.Key.Year,
			&entry.TotalDays, &entry.UsedDays, &updatedAt)
		if err != nil {
			return nil, err
		}
		entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		result = append(result, entry)
	}
	return result, rows.Err()
}

// =============================================================================
// REQUEST STORE (leave.RequestStore interface)
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRequest(ctx, s.db, req)
}

func (s *Store) saveRequest(ctx context.Context, db querier, req *leave.LeaveRequest) error {
	var approvedBy, decidedAt, rejection any
	if req.ApprovedBy != nil {
		approvedBy = *req.ApprovedBy
	}
	if req.DecidedAt != nil {
		decidedAt = req.DecidedAt.UTC().Format(time.RFC3339)
	}
	if req.RejectionReason != nil {
		rejection = *req.RejectionReason
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO leave_requests
		(id, personnel_id, category_id, start_date, end_date, status, work_days, total_days,
		 reason, approved_by, decided_at, rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			work_days = excluded.work_days,
			total_days = excluded.total_days,
			approved_by = excluded.approved_by,
			decided_at = excluded.decided_at,
			rejection_reason = excluded.rejection_reason,
			updated_at = excluded.updated_at`,
		req.ID, req.PersonnelID, req.CategoryID,
		req.StartDate.String(), req.EndDate.String(), req.Status,
		req.WorkDays, req.TotalDays, req.Reason,
		approvedBy, decidedAt, rejection,
		req.CreatedAt.UTC().Format(time.RFC3339), req.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (s *Store) Request(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	reqs, err := s.queryRequests(ctx, `
		SELECT id, personnel_id, category_id, start_date, end_date, status, work_days, total_days,
		       reason, approved_by, decided_at, rejection_reason, created_at, updated_at
		FROM leave_requests WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, leave.ErrRequestNotFound
	}
	return &reqs[0], nil
}

func (s *Store) RequestsByPersonnel(ctx context.Context, id leave.PersonnelID) ([]leave.LeaveRequest, error) {
	return s.queryRequests(ctx, `
		SELECT id, personnel_id, category_id, start_date, end_date, status, work_days, total_days,
		       reason, approved_by, decided_at, rejection_reason, created_at, updated_at
		FROM leave_requests WHERE personnel_id = ? ORDER BY created_at ASC`, id)
}

func (s *Store) PendingRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	return s.queryRequests(ctx, `
		SELECT id, personnel_id, category_id, start_date, end_date, status, work_days, total_days,
		       reason, approved_by, decided_at, rejection_reason, created_at, updated_at
		FROM leave_requests WHERE status = 'pending' ORDER BY created_at ASC`)
}

func (s *Store) HasOverlapping(ctx context.Context, id leave.PersonnelID, start, end leave.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leave_requests
		WHERE personnel_id = ?
		  AND status IN ('pending', 'approved')
		  AND start_date <= ? AND end_date >= ?`,
		id, end.String(), start.String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return count > 0, nil
}

// FinalizeApproval applies the ledger debit and the request status flip in a
// single database transaction. Either both land or neither does.
func (s *Store) FinalizeApproval(ctx context.Context, req *leave.LeaveRequest, key leave.LedgerKey, defaultTotal, debit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureEntry(ctx, tx, key, defaultTotal); err != nil {
		return err
	}
	if err := s.addUsed(ctx, tx, key, debit); err != nil {
		return err
	}
	if err := s.saveRequest(ctx, tx, req); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var result []leave.LeaveRequest
	for rows.Next() {
		var (
			req                  leave.LeaveRequest
			startStr, endStr     string
			approvedBy, decided  sql.NullString
			rejection            sql.NullString
			createdAt, updatedAt string
		)
		err := rows.Scan(&req.ID, &req.PersonnelID, &req.CategoryID, &startStr, &endStr,
			&req.Status, &req.WorkDays, &req.TotalDays, &req.Reason,
			&approvedBy, &decided, &rejection, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		req.StartDate = parseDate(startStr)
		req.EndDate = parseDate(endStr)
		if approvedBy.Valid {
			v := approvedBy.String
			req.ApprovedBy = &v
		}
		if decided.Valid {
			t, _ := time.Parse(time.RFC3339, decided.String)
			req.DecidedAt = &t
		}
		if rejection.Valid {
			v := rejection.String
			req.RejectionReason = &v
		}
		req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		req.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		result = append(result, req)
	}
	return result, rows.Err()
}

// =============================================================================
// HOLIDAY CALENDAR (leave.HolidayCalendar interface + admin)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h leave.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, name, date, recurring)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			date = excluded.date,
			recurring = excluded.recurring`,
		h.ID, h.Name, h.Date.String(), boolInt(h.Recurring),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	return err
}

func (s *Store) IsHoliday(date leave.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	monthDay := fmt.Sprintf("%%-%02d-%02d", int(date.Month()), date.Day())
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM holidays
		WHERE (recurring = 0 AND date = ?)
		   OR (recurring = 1 AND date LIKE ?)`,
		date.String(), monthDay,
	).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

func (s *Store) Holidays(year int) []leave.Holiday {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, date, recurring FROM holidays ORDER BY date`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var result []leave.Holiday
	for rows.Next() {
		var (
			h         leave.Holiday
			dateStr   string
			recurring int
		)
		if err := rows.Scan(&h.ID, &h.Name, &dateStr, &recurring); err != nil {
			return nil
		}
		h.Date = parseDate(dateStr)
		h.Recurring = recurring != 0
		if h.Recurring || h.Date.Year() == year {
			result = append(result, h)
		}
	}
	return result
}

// =============================================================================
// HELPERS
// =============================================================================

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
