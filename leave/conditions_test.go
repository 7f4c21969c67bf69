package leave_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// HELPERS
// =============================================================================

// newTestEvaluator wires an evaluator over an in-memory catalog and a
// registry backed by a plain attribute map: attrs[person][column] = value.
func newTestEvaluator(t *testing.T, attrs map[leave.PersonnelID]map[string]string) (*leave.Evaluator, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	registry := leave.NewAttributeRegistry()
	for _, column := range []string{"employment_type", "gender", "marital_status"} {
		col := column
		registry.Register("personnel", col, func(_ context.Context, id leave.PersonnelID) (string, error) {
			person, ok := attrs[id]
			if !ok {
				return "", leave.ErrNoAttributeRecord
			}
			return person[col], nil
		})
	}
	return leave.NewEvaluator(mem, registry), mem
}

func cond(id string, catID leave.CategoryID, column string, dt leave.DataType, op leave.Operator, required, msg string) leave.EligibilityCondition {
	return leave.EligibilityCondition{
		ID:            id,
		CategoryID:    catID,
		SourceTable:   "personnel",
		SourceColumn:  column,
		DataType:      dt,
		Operator:      op,
		RequiredValue: required,
		ErrorMessage:  msg,
		Active:        true,
	}
}

// =============================================================================
// COMPARE - Coercion and operators
// =============================================================================

func TestCompare_StringCanonicalization(t *testing.T) {
	// GIVEN a string EQ condition
	c := cond("c1", "cat", "employment_type", leave.DataString, leave.OpEQ, "FULL_TIME", "")

	// THEN whitespace and case differences do not matter
	ok, err := leave.Compare(c, "  full_time ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = leave.Compare(c, "PART_TIME")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompare_StringNE(t *testing.T) {
	c := cond("c1", "cat", "employment_type", leave.DataString, leave.OpNE, "CONTRACTOR", "")

	ok, err := leave.Compare(c, "full_time")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = leave.Compare(c, "Contractor")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompare_BooleanTruthyTokens(t *testing.T) {
	// "1", "t" and "true" are all the same boolean
	c := cond("c1", "cat", "active", leave.DataBoolean, leave.OpEQ, "true", "")

	for _, raw := range []string{"1", "t", "TRUE", "true"} {
		ok, err := leave.Compare(c, raw)
		require.NoError(t, err)
		assert.True(t, ok, "%q should be truthy", raw)
	}

	ok, err := leave.Compare(c, "false")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompare_NumberOrdering(t *testing.T) {
	c := cond("c1", "cat", "dependents", leave.DataNumber, leave.OpGE, "2", "")

	ok, err := leave.Compare(c, "3")
	require.NoError(t, err)
	assert.True(t, ok)

	// Decimal compare, not string compare: "2.0" satisfies GE "2"
	ok, err = leave.Compare(c, "2.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = leave.Compare(c, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = leave.Compare(c, "many")
	assert.Error(t, err, "unparseable numbers are configuration errors")
}

func TestCompare_DateOrdering(t *testing.T) {
	c := cond("c1", "cat", "hire_date", leave.DataDate, leave.OpLT, "2025-01-01", "")

	ok, err := leave.Compare(c, "2023-06-15")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = leave.Compare(c, "2025-06-15")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompare_Membership(t *testing.T) {
	// GIVEN a numeric IN list
	c := cond("c1", "cat", "grade", leave.DataNumber, leave.OpIn, "3,5,7", "")

	// THEN membership is decided by coerced equality
	ok, err := leave.Compare(c, "5.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = leave.Compare(c, "4")
	require.NoError(t, err)
	assert.False(t, ok)

	// AND NOT_IN is the exact complement
	c.Operator = leave.OpNotIn
	ok, err = leave.Compare(c, "4")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = leave.Compare(c, "7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompare_StringListTrimsItems(t *testing.T) {
	c := cond("c1", "cat", "department", leave.DataString, leave.OpIn, "SALES, ENGINEERING ,HR", "")

	ok, err := leave.Compare(c, "engineering")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompare_UnsupportedOperator(t *testing.T) {
	c := cond("c1", "cat", "grade", leave.DataNumber, leave.Operator("LIKE"), "5", "")
	_, err := leave.Compare(c, "5")
	assert.Error(t, err)
}

// =============================================================================
// ATTRIBUTE REGISTRY - Closed resolution
// =============================================================================

func TestAttributeRegistry_CaseInsensitiveKeys(t *testing.T) {
	registry := leave.NewAttributeRegistry()
	registry.Register("Personnel", "Employment_Type", func(context.Context, leave.PersonnelID) (string, error) {
		return "FULL_TIME", nil
	})

	got, err := registry.Resolve(context.Background(), "personnel", "employment_type", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "FULL_TIME", got)
}

func TestAttributeRegistry_UnknownAttribute(t *testing.T) {
	registry := leave.NewAttributeRegistry()
	_, err := registry.Resolve(context.Background(), "personnel", "shoe_size", "emp-1")
	assert.ErrorIs(t, err, leave.ErrUnknownAttribute)
}

// =============================================================================
// EVALUATOR - Conjunctive evaluation against the catalog
// =============================================================================

func TestEvaluator_AllConditionsPass(t *testing.T) {
	evaluator, mem := newTestEvaluator(t, map[leave.PersonnelID]map[string]string{
		"emp-1": {"employment_type": "FULL_TIME", "marital_status": "MARRIED"},
	})
	ctx := context.Background()

	require.NoError(t, mem.SaveCondition(ctx, cond("c1", "cat-marriage", "employment_type", leave.DataString, leave.OpEQ, "FULL_TIME", "full-time only")))
	require.NoError(t, mem.SaveCondition(ctx, cond("c2", "cat-marriage", "marital_status", leave.DataString, leave.OpEQ, "MARRIED", "married only")))

	assert.NoError(t, evaluator.Evaluate(ctx, "cat-marriage", "emp-1"))
}

func TestEvaluator_FirstFailureCarriesConfiguredMessage(t *testing.T) {
	evaluator, mem := newTestEvaluator(t, map[leave.PersonnelID]map[string]string{
		"emp-2": {"employment_type": "PART_TIME", "marital_status": "SINGLE"},
	})
	ctx := context.Background()

	require.NoError(t, mem.SaveCondition(ctx, cond("c1", "cat-marriage", "employment_type", leave.DataString, leave.OpEQ, "FULL_TIME", "full-time only")))
	require.NoError(t, mem.SaveCondition(ctx, cond("c2", "cat-marriage", "marital_status", leave.DataString, leave.OpEQ, "MARRIED", "married only")))

	err := evaluator.Evaluate(ctx, "cat-marriage", "emp-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrConditionNotMet)

	var cerr *leave.ConditionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "c1", cerr.ConditionID, "evaluation stops at the first failing condition")
	assert.Contains(t, cerr.Error(), "full-time only")
}

func TestEvaluator_InactiveConditionsSkipped(t *testing.T) {
	evaluator, mem := newTestEvaluator(t, map[leave.PersonnelID]map[string]string{
		"emp-2": {"employment_type": "PART_TIME"},
	})
	ctx := context.Background()

	gate := cond("c1", "cat-annual", "employment_type", leave.DataString, leave.OpEQ, "FULL_TIME", "full-time only")
	gate.Active = false
	require.NoError(t, mem.SaveCondition(ctx, gate))

	assert.NoError(t, evaluator.Evaluate(ctx, "cat-annual", "emp-2"))
}

func TestEvaluator_MissingAttributeRecordFails(t *testing.T) {
	// GIVEN a condition whose subject has no attribute record at all
	evaluator, mem := newTestEvaluator(t, map[leave.PersonnelID]map[string]string{})
	ctx := context.Background()

	require.NoError(t, mem.SaveCondition(ctx, cond("c1", "cat-annual", "employment_type", leave.DataString, leave.OpEQ, "FULL_TIME", "full-time only")))

	// THEN the absence is a hard failure, never an implicit pass
	err := evaluator.Evaluate(ctx, "cat-annual", "emp-ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrConditionNotMet)

	var cerr *leave.ConditionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, leave.ErrNoAttributeRecord.Error(), cerr.Message)
}

func TestEvaluator_UnregisteredAttributeIsConfigError(t *testing.T) {
	evaluator, mem := newTestEvaluator(t, map[leave.PersonnelID]map[string]string{
		"emp-1": {"employment_type": "FULL_TIME"},
	})
	ctx := context.Background()

	require.NoError(t, mem.SaveCondition(ctx, cond("c1", "cat-annual", "salary", leave.DataNumber, leave.OpGT, "0", "")))

	// An unregistered attribute surfaces as a configuration error, not as
	// an eligibility verdict.
	err := evaluator.Evaluate(ctx, "cat-annual", "emp-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrUnknownAttribute)
	var cerr *leave.ConditionError
	assert.False(t, errors.As(err, &cerr))
}

func TestEvaluator_NoConditionsMeansEligible(t *testing.T) {
	evaluator, _ := newTestEvaluator(t, nil)
	assert.NoError(t, evaluator.Evaluate(context.Background(), "cat-unknown", "emp-1"))
}
