package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwise/statement-ingest/internal/models"
	"github.com/finwise/statement-ingest/internal/store"
)

// testClient records every call and replays canned responses.
type testClient struct {
	queryOut    *dynamodb.QueryOutput
	queryIn     []*dynamodb.QueryInput
	putIn       []*dynamodb.PutItemInput
	transactIn  []*dynamodb.TransactWriteItemsInput
	transactErr error
}

func (c *testClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.queryIn = append(c.queryIn, params)
	if c.queryOut != nil {
		return c.queryOut, nil
	}
	return &dynamodb.QueryOutput{}, nil
}

func (c *testClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.putIn = append(c.putIn, params)
	return &dynamodb.PutItemOutput{}, nil
}

func (c *testClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.transactIn = append(c.transactIn, params)
	if c.transactErr != nil {
		return nil, c.transactErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }
func b(v bool) types.AttributeValue   { return &types.AttributeValueMemberBOOL{Value: v} }

func accountRaw(id, name, acctType, currency, balance, createdAt string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        s("USER#u1"),
		"SK":        s("ACCOUNT#" + id),
		"Type":      s("account"),
		"AccountID": s(id),
		"Name":      s(name),
		"AcctType":  s(acctType),
		"Currency":  s(currency),
		"Balance":   n(balance),
		"Deleted":   b(false),
		"CreatedAt": s(createdAt),
	}
}

// exprStringValues collects all string expression values of a query, so
// assertions do not depend on the builder's placeholder numbering.
func exprStringValues(in *dynamodb.QueryInput) []string {
	var out []string
	for _, v := range in.ExpressionAttributeValues {
		if sv, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, sv.Value)
		}
	}
	return out
}

func TestListEligible(t *testing.T) {
	// returned out of creation order; the store must sort
	client := &testClient{queryOut: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			accountRaw("a2", "Savings", "SAVINGS", "USD", "250.75", "2024-02-01T00:00:00Z"),
			accountRaw("a1", "Checking", "CHECKING", "USD", "-10.5", "2024-01-01T00:00:00Z"),
		},
	}}
	st := New(client, "test-table", nil)

	accounts, err := st.ListEligible(context.Background(), "u1", "")
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, "a1", accounts[0].ID)
	assert.Equal(t, "a2", accounts[1].ID)
	assert.True(t, accounts[0].Balance.Equal(decimal.RequireFromString("-10.5")))
	assert.Equal(t, "Checking", accounts[0].Name)
	assert.Equal(t, "CHECKING", accounts[0].Type)

	require.Len(t, client.queryIn, 1)
	assert.Contains(t, exprStringValues(client.queryIn[0]), "USER#u1")
	assert.Contains(t, exprStringValues(client.queryIn[0]), "ACCOUNT#")
}

func TestFindDuplicateKeyRange(t *testing.T) {
	client := &testClient{}
	st := New(client, "test-table", nil)

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	got, err := st.FindDuplicate(context.Background(), store.DuplicateQuery{
		UserID:      "u1",
		AccountID:   "a1",
		Date:        date,
		Amount:      decimal.RequireFromString("-65.32"),
		Currency:    "USD",
		Description: "SUPERMERCADO CENTRAL",
	})
	require.NoError(t, err)
	assert.Nil(t, got)

	require.Len(t, client.queryIn, 1)
	values := exprStringValues(client.queryIn[0])
	// the window is folded into the sort key range
	assert.Contains(t, values, "TXN#2024-05-08")
	assert.Contains(t, values, "TXN#2024-05-12#~")
	assert.Contains(t, values, "-65.32")
	assert.Contains(t, values, "SUPERMERCADO CENTRAL")
	assert.Contains(t, values, "a1")
}

func TestFindDuplicateCurrencyWildcard(t *testing.T) {
	client := &testClient{}
	st := New(client, "test-table", nil)

	_, err := st.FindDuplicate(context.Background(), store.DuplicateQuery{
		UserID:      "u1",
		Date:        time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-65.32"),
		Description: "SUPERMERCADO CENTRAL",
	})
	require.NoError(t, err)

	// no currency in the query, no currency in the filter
	require.Len(t, client.queryIn, 1)
	for _, name := range client.queryIn[0].ExpressionAttributeNames {
		assert.NotEqual(t, "Currency", name)
	}
}

func TestFindDuplicateDecodesHit(t *testing.T) {
	client := &testClient{queryOut: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{{
			"PK":          s("USER#u1"),
			"SK":          s("TXN#2024-05-10#01HV"),
			"Type":        s("transaction"),
			"TxnID":       s("01HV"),
			"AccountID":   s("a1"),
			"Date":        s("2024-05-10"),
			"Amount":      s("-65.32"),
			"Currency":    s("USD"),
			"Description": s("SUPERMERCADO CENTRAL"),
			"Status":      s("POSTED"),
			"Deleted":     b(false),
		}},
	}}
	st := New(client, "test-table", nil)

	got, err := st.FindDuplicate(context.Background(), store.DuplicateQuery{
		UserID: "u1", Date: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("-65.32"), Currency: "USD",
		Description: "SUPERMERCADO CENTRAL",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "01HV", got.ID)
	assert.Equal(t, "a1", got.AccountID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("-65.32")))
	assert.Equal(t, models.StatusPosted, got.Status)
}

func makeTxn(i byte, date time.Time) models.Transaction {
	return models.Transaction{
		UserID:      "u1",
		AccountID:   "a1",
		Date:        date,
		Amount:      decimal.NewFromInt(int64(i)),
		Currency:    "USD",
		Description: "ROW",
		Status:      models.StatusPosted,
	}
}

func TestCommitBatchSingleTransaction(t *testing.T) {
	client := &testClient{}
	st := New(client, "test-table", nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	batch := store.Batch{
		UserID: "u1",
		Inserts: []models.Transaction{
			makeTxn(1, date), makeTxn(2, date), makeTxn(3, date),
		},
		BalanceDeltas: map[string]decimal.Decimal{
			"a1": decimal.RequireFromString("6"),
		},
	}
	require.NoError(t, st.CommitBatch(context.Background(), batch))

	require.Len(t, client.transactIn, 1)
	items := client.transactIn[0].TransactItems
	require.Len(t, items, 4)

	for _, it := range items[:3] {
		require.NotNil(t, it.Put)
		assert.Equal(t, "attribute_not_exists(SK)", *it.Put.ConditionExpression)
		sk := it.Put.Item["SK"].(*types.AttributeValueMemberS).Value
		assert.Contains(t, sk, "TXN#2024-06-01#")
	}

	upd := items[3].Update
	require.NotNil(t, upd)
	assert.Equal(t, "ADD Balance :delta", *upd.UpdateExpression)
	assert.Equal(t, "attribute_exists(SK)", *upd.ConditionExpression)
	assert.Equal(t, "ACCOUNT#a1", upd.Key["SK"].(*types.AttributeValueMemberS).Value)
	delta := upd.ExpressionAttributeValues[":delta"].(*types.AttributeValueMemberN).Value
	assert.Equal(t, "6", delta)
}

func TestCommitBatchChunksLargeImports(t *testing.T) {
	client := &testClient{}
	st := New(client, "test-table", nil)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	batch := store.Batch{
		UserID:        "u1",
		BalanceDeltas: map[string]decimal.Decimal{"a1": decimal.NewFromInt(150)},
	}
	for i := 0; i < 150; i++ {
		batch.Inserts = append(batch.Inserts, makeTxn(1, date))
	}
	require.NoError(t, st.CommitBatch(context.Background(), batch))

	require.Len(t, client.transactIn, 2)
	assert.Len(t, client.transactIn[0].TransactItems, maxTransactActions)
	// the balance update rides in the final chunk only
	last := client.transactIn[1].TransactItems
	assert.Len(t, last, 51)
	assert.NotNil(t, last[len(last)-1].Update)
	for _, it := range client.transactIn[0].TransactItems {
		assert.Nil(t, it.Update)
	}
}

func TestCommitBatchPropagatesFailure(t *testing.T) {
	client := &testClient{transactErr: errors.New("throttled")}
	st := New(client, "test-table", nil)

	err := st.CommitBatch(context.Background(), store.Batch{
		UserID:  "u1",
		Inserts: []models.Transaction{makeTxn(1, time.Now())},
	})
	require.Error(t, err)
}

func TestEnsureDefaults(t *testing.T) {
	t.Run("provisions full set when user has none", func(t *testing.T) {
		client := &testClient{}
		st := New(client, "test-table", nil)

		require.NoError(t, st.EnsureDefaults(context.Background(), "u1"))
		assert.Len(t, client.putIn, len(store.DefaultCategories))
	})

	t.Run("adds only the catch-all when missing", func(t *testing.T) {
		client := &testClient{queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{{
				"PK": s("USER#u1"), "SK": s("CATEGORY#c1"), "Type": s("category"),
				"CategoryID": s("c1"), "Name": s("Custom"), "Color": s("#000000"),
			}},
		}}
		st := New(client, "test-table", nil)

		require.NoError(t, st.EnsureDefaults(context.Background(), "u1"))
		require.Len(t, client.putIn, 1)
		name := client.putIn[0].Item["Name"].(*types.AttributeValueMemberS).Value
		assert.Equal(t, "Others", name)
	})

	t.Run("no-op when catch-all exists", func(t *testing.T) {
		client := &testClient{queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{{
				"PK": s("USER#u1"), "SK": s("CATEGORY#c1"), "Type": s("category"),
				"CategoryID": s("c1"), "Name": s("Others"), "Color": s("#9CA3AF"),
			}},
		}}
		st := New(client, "test-table", nil)

		require.NoError(t, st.EnsureDefaults(context.Background(), "u1"))
		assert.Empty(t, client.putIn)
	})
}
