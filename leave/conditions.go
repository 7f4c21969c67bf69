/*
conditions.go - Declarative eligibility evaluation

PURPOSE:
  Evaluates the data-driven eligibility conditions attached to a leave
  category against a specific person. Conditions reference attributes by
  (source_table, source_column); the values are fetched, coerced per the
  condition's data type, and compared with its operator.

ATTRIBUTE RESOLUTION:
  Conditions are stored configuration, so table/column names must never
  reach a query builder. Resolution goes through a CLOSED registry of
  accessor functions keyed by (table, column). A condition referencing
  an unregistered attribute is a configuration error, which keeps the
  set of queryable attributes statically auditable.

COERCION RULES:
  string  -> trim + uppercase both sides
  boolean -> truthy tokens: "true", "t", "1" (case-insensitive)
  date    -> parsed as "2006-01-02"
  number  -> decimal compare, so "5.0" equals "5"

OPERATORS:
  EQ NE GT GE LT LE compare directly; IN and NOT_IN treat the required
  value as a comma-separated list. All conditions on a category are
  conjunctive: the first failure aborts with its configured message.
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ATTRIBUTE REGISTRY - Closed set of safe accessors
// =============================================================================

// AttributeKey identifies an attribute source a condition may reference.
type AttributeKey struct {
	Table  string
	Column string
}

// AttributeResolver fetches the raw attribute value for a person. It returns
// ErrNoAttributeRecord when the person has no row in the source.
type AttributeResolver func(ctx context.Context, id PersonnelID) (string, error)

// AttributeRegistry is the closed lookup table of attribute resolvers.
// Only registered (table, column) pairs are queryable.
type AttributeRegistry struct {
	mu        sync.RWMutex
	resolvers map[AttributeKey]AttributeResolver
}

func NewAttributeRegistry() *AttributeRegistry {
	return &AttributeRegistry{resolvers: make(map[AttributeKey]AttributeResolver)}
}

// Register adds a resolver for (table, column). Keys are matched
// case-insensitively.
func (r *AttributeRegistry) Register(table, column string, fn AttributeResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[normalizeKey(table, column)] = fn
}

// Resolve fetches the attribute value, or ErrUnknownAttribute when the pair
// is not registered.
func (r *AttributeRegistry) Resolve(ctx context.Context, table, column string, id PersonnelID) (string, error) {
	r.mu.RLock()
	fn, ok := r.resolvers[normalizeKey(table, column)]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, table, column)
	}
	return fn(ctx, id)
}

// Keys returns the registered attribute sources, for admin introspection.
func (r *AttributeRegistry) Keys() []AttributeKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]AttributeKey, 0, len(r.resolvers))
	for k := range r.resolvers {
		keys = append(keys, k)
	}
	return keys
}

func normalizeKey(table, column string) AttributeKey {
	return AttributeKey{
		Table:  strings.ToLower(strings.TrimSpace(table)),
		Column: strings.ToLower(strings.TrimSpace(column)),
	}
}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluator checks every active condition of a category against a person.
type Evaluator struct {
	Catalog    CatalogStore
	Attributes *AttributeRegistry
}

func NewEvaluator(catalog CatalogStore, attrs *AttributeRegistry) *Evaluator {
	return &Evaluator{Catalog: catalog, Attributes: attrs}
}

// Evaluate returns nil when every condition passes. The first failing
// condition aborts with a ConditionError carrying its configured message.
// A missing attribute record is a hard failure, not a pass.
func (e *Evaluator) Evaluate(ctx context.Context, categoryID CategoryID, personnelID PersonnelID) error {
	conditions, err := e.Catalog.Conditions(ctx, categoryID)
	if err != nil {
		return err
	}

	for _, cond := range conditions {
		if !cond.Active {
			continue
		}

		raw, err := e.Attributes.Resolve(ctx, cond.SourceTable, cond.SourceColumn, personnelID)
		if err != nil {
			if errors.Is(err, ErrNoAttributeRecord) {
				return &ConditionError{ConditionID: cond.ID, Message: ErrNoAttributeRecord.Error()}
			}
			return err
		}

		ok, err := Compare(cond, raw)
		if err != nil {
			return fmt.Errorf("condition %s: %w", cond.ID, err)
		}
		if !ok {
			return &ConditionError{ConditionID: cond.ID, Message: cond.ErrorMessage}
		}
	}
	return nil
}

// =============================================================================
// COMPARISON - Coercion + operator application
// =============================================================================

// Compare coerces the fetched value and the condition's required value per
// the condition's data type and applies its operator.
func Compare(cond EligibilityCondition, raw string) (bool, error) {
	switch cond.Operator {
	case OpIn, OpNotIn:
		member, err := inList(cond.DataType, raw, cond.RequiredValue)
		if err != nil {
			return false, err
		}
		if cond.Operator == OpIn {
			return member, nil
		}
		return !member, nil

	case OpEQ, OpNE, OpGT, OpGE, OpLT, OpLE:
		cmp, err := compareTyped(cond.DataType, raw, cond.RequiredValue)
		if err != nil {
			return false, err
		}
		switch cond.Operator {
		case OpEQ:
			return cmp == 0, nil
		case OpNE:
			return cmp != 0, nil
		case OpGT:
			return cmp > 0, nil
		case OpGE:
			return cmp >= 0, nil
		case OpLT:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}

	default:
		return false, fmt.Errorf("unsupported operator %q", cond.Operator)
	}
}

// compareTyped returns -1/0/+1 for the coerced values.
func compareTyped(dt DataType, actual, required string) (int, error) {
	switch dt {
	case DataNumber:
		a, err := decimal.NewFromString(strings.TrimSpace(actual))
		if err != nil {
			return 0, fmt.Errorf("invalid number %q: %w", actual, err)
		}
		b, err := decimal.NewFromString(strings.TrimSpace(required))
		if err != nil {
			return 0, fmt.Errorf("invalid number %q: %w", required, err)
		}
		return a.Cmp(b), nil

	case DataBoolean:
		a, b := truthy(actual), truthy(required)
		if a == b {
			return 0, nil
		}
		return 1, nil // inequality only; ordering booleans is meaningless

	case DataDate:
		a, err := ParseDate(actual)
		if err != nil {
			return 0, err
		}
		b, err := ParseDate(required)
		if err != nil {
			return 0, err
		}
		switch {
		case a.Before(b):
			return -1, nil
		case a.After(b):
			return 1, nil
		default:
			return 0, nil
		}

	default: // DataString and anything unspecified
		a, b := canonicalString(actual), canonicalString(required)
		return strings.Compare(a, b), nil
	}
}

// inList checks membership of the coerced value in the comma-separated list.
func inList(dt DataType, actual, list string) (bool, error) {
	for _, item := range strings.Split(list, ",") {
		cmp, err := compareTyped(dt, actual, item)
		if err != nil {
			return false, err
		}
		if cmp == 0 {
			return true, nil
		}
	}
	return false, nil
}

func canonicalString(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1":
		return true
	default:
		return false
	}
}
