package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightloop/glean/pkg/models"
)

func TestValidatePlan_EmptyPlanRejected(t *testing.T) {
	err := ValidatePlan(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data requests")
}

func TestValidatePlan_ParallelPlanAlwaysValid(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, SQL: "SELECT 1", SourceID: "1"},
		{Kind: models.RequestMongoQuery, Collection: "events", Operation: models.MongoCount, SourceID: "2"},
	}
	assert.NoError(t, ValidatePlan(plan))
	assert.False(t, IsChained(plan))
}

func TestValidatePlan_ChainedHappyPath(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT id FROM users WHERE username='johndoe'",
			OutputAs: "$user_id", OutputField: "id"},
		{Kind: models.RequestSQLQuery, Step: 2, DependsOn: 1,
			SQL: "SELECT * FROM orders WHERE user_id = $user_id"},
	}
	assert.NoError(t, ValidatePlan(plan))
	assert.True(t, IsChained(plan))
}

func TestValidatePlan_StepsMustBeContiguousFromOne(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT 1"},
		{Kind: models.RequestSQLQuery, Step: 3, SQL: "SELECT 2"},
	}
	err := ValidatePlan(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contiguous")
}

func TestValidatePlan_DuplicateStepRejected(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT 1"},
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT 2"},
	}
	err := ValidatePlan(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step")
}

func TestValidatePlan_MissingStepInChainedPlanRejected(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT 1"},
		{Kind: models.RequestSQLQuery, SQL: "SELECT 2"},
	}
	err := ValidatePlan(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a step")
}

func TestValidatePlan_DependsOnMustReferenceEarlierStep(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, DependsOn: 2, SQL: "SELECT 1"},
		{Kind: models.RequestSQLQuery, Step: 2, SQL: "SELECT 2"},
	}
	err := ValidatePlan(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "earlier step")
}

func TestValidatePlan_OutputAsShapeEnforced(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT 1", OutputAs: "user_id", OutputField: "id"},
		{Kind: models.RequestSQLQuery, Step: 2, DependsOn: 1, SQL: "SELECT 2"},
	}
	err := ValidatePlan(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid $name")
}

func TestValidatePlan_DuplicateOutputAsRejected(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT 1", OutputAs: "$x", OutputField: "a"},
		{Kind: models.RequestSQLQuery, Step: 2, SQL: "SELECT 2", OutputAs: "$x", OutputField: "b"},
		{Kind: models.RequestSQLQuery, Step: 3, DependsOn: 2, SQL: "SELECT $x"},
	}
	err := ValidatePlan(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared by both")
}

func TestValidatePlan_PlaceholderNeedsAncestorOutput(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT id FROM users", OutputAs: "$user_id", OutputField: "id"},
		{Kind: models.RequestSQLQuery, Step: 2, SQL: "SELECT * FROM orders WHERE user_id = $user_id"},
	}
	// Step 2 uses $user_id but declares no dependsOn chain to step 1.
	err := ValidatePlan(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$user_id")
}

func TestValidatePlan_PlaceholderResolvedThroughChain(t *testing.T) {
	plan := []models.DataRequest{
		{Kind: models.RequestSQLQuery, Step: 1, SQL: "SELECT id FROM users", OutputAs: "$user_id", OutputField: "id"},
		{Kind: models.RequestSQLQuery, Step: 2, DependsOn: 1, SQL: "SELECT org_id FROM memberships WHERE user_id = $user_id",
			OutputAs: "$org_id", OutputField: "org_id"},
		{Kind: models.RequestSQLQuery, Step: 3, DependsOn: 2,
			SQL: "SELECT * FROM invoices WHERE org_id = $org_id AND user_id = $user_id"},
	}
	assert.NoError(t, ValidatePlan(plan))
}
