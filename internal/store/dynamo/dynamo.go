package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finwise/statement-ingest/internal/models"
	"github.com/finwise/statement-ingest/internal/store"
)

const (
	dateFormat = "2006-01-02"

	// DynamoDB transactions cap at 100 actions; larger batches are
	// committed in chunks with balance deltas in the final chunk.
	maxTransactActions = 100
)

// Store implements the three store interfaces on one DynamoDB table.
// Layout: PK "USER#<id>"; SK "ACCOUNT#<id>", "CATEGORY#<id>" or
// "TXN#<date>#<ulid>" so duplicate checks become a key range query.
type Store struct {
	client Client
	table  string
	log    *zap.Logger
}

func New(client Client, table string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, table: table, log: log}
}

func userPK(userID string) string { return "USER#" + userID }

// Balance lives outside the struct: it is a number attribute so the
// commit's ADD expression can increment it, and it is read back through
// decimal to keep exact values.
type accountItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Type      string `dynamodbav:"Type"`
	AccountID string `dynamodbav:"AccountID"`
	Name      string `dynamodbav:"Name"`
	AcctType  string `dynamodbav:"AcctType"`
	Currency  string `dynamodbav:"Currency"`
	Deleted   bool   `dynamodbav:"Deleted"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

type categoryItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Type       string `dynamodbav:"Type"`
	CategoryID string `dynamodbav:"CategoryID"`
	Name       string `dynamodbav:"Name"`
	Color      string `dynamodbav:"Color"`
}

type txnItem struct {
	PK          string   `dynamodbav:"PK"`
	SK          string   `dynamodbav:"SK"`
	Type        string   `dynamodbav:"Type"`
	TxnID       string   `dynamodbav:"TxnID"`
	AccountID   string   `dynamodbav:"AccountID"`
	Date        string   `dynamodbav:"Date"`
	Amount      string   `dynamodbav:"Amount"`
	Currency    string   `dynamodbav:"Currency"`
	Description string   `dynamodbav:"Description"`
	CategoryID  string   `dynamodbav:"CategoryID,omitempty"`
	Status      string   `dynamodbav:"Status"`
	Tags        []string `dynamodbav:"Tags"`
	Deleted     bool     `dynamodbav:"Deleted"`
	CreatedAt   string   `dynamodbav:"CreatedAt"`
}

func (s *Store) ListEligible(ctx context.Context, userID, typeFilter string) ([]models.Account, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith("ACCOUNT#"))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)

	filt := expression.Name("Deleted").Equal(expression.Value(false))
	if typeFilter != "" {
		filt = filt.And(expression.Name("AcctType").Equal(expression.Value(typeFilter)))
	}
	builder = builder.WithFilter(filt)

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building account query: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}

	type ordered struct {
		acc     models.Account
		created string
	}
	rows := make([]ordered, 0, len(out.Items))
	for _, raw := range out.Items {
		var item accountItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshaling account: %w", err)
		}
		balance := decimal.Zero
		if v, ok := raw["Balance"].(*types.AttributeValueMemberN); ok {
			if d, err := decimal.NewFromString(v.Value); err == nil {
				balance = d
			}
		}
		rows = append(rows, ordered{
			acc: models.Account{
				ID:       item.AccountID,
				UserID:   userID,
				Name:     item.Name,
				Type:     item.AcctType,
				Currency: item.Currency,
				Balance:  balance,
				Deleted:  item.Deleted,
			},
			created: item.CreatedAt,
		})
	}
	// account inference relies on stable creation order
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].created < rows[j].created })

	accounts := make([]models.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, r.acc)
	}
	return accounts, nil
}

func (s *Store) EnsureDefaults(ctx context.Context, userID string) error {
	categories, err := s.List(ctx, userID)
	if err != nil {
		return err
	}

	hasOthers := false
	for _, c := range categories {
		if strings.EqualFold(c.Name, "Others") {
			hasOthers = true
			break
		}
	}

	var missing []models.Category
	switch {
	case len(categories) == 0:
		missing = store.DefaultCategories
	case !hasOthers:
		missing = []models.Category{{Name: "Others", Color: "#9CA3AF"}}
	default:
		return nil
	}

	for _, c := range missing {
		id := ulid.Make().String()
		item, err := attributevalue.MarshalMap(categoryItem{
			PK:         userPK(userID),
			SK:         "CATEGORY#" + id,
			Type:       "category",
			CategoryID: id,
			Name:       c.Name,
			Color:      c.Color,
		})
		if err != nil {
			return fmt.Errorf("marshaling category: %w", err)
		}
		if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      item,
		}); err != nil {
			return fmt.Errorf("provisioning category %q: %w", c.Name, err)
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context, userID string) ([]models.Category, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith("CATEGORY#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("building category query: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}

	categories := make([]models.Category, 0, len(out.Items))
	for _, raw := range out.Items {
		var item categoryItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshaling category: %w", err)
		}
		categories = append(categories, models.Category{
			ID:     item.CategoryID,
			UserID: userID,
			Name:   item.Name,
			Color:  item.Color,
		})
	}
	return categories, nil
}

func (s *Store) FindDuplicate(ctx context.Context, q store.DuplicateQuery) (*models.Transaction, error) {
	lo := "TXN#" + q.Date.Add(-store.DedupWindow).Format(dateFormat)
	hi := "TXN#" + q.Date.Add(store.DedupWindow).Format(dateFormat) + "#~"

	keyCond := expression.Key("PK").Equal(expression.Value(userPK(q.UserID))).
		And(expression.Key("SK").Between(expression.Value(lo), expression.Value(hi)))
	filt := expression.Name("Amount").Equal(expression.Value(q.Amount.String())).
		And(expression.Name("Description").Equal(expression.Value(q.Description))).
		And(expression.Name("Deleted").Equal(expression.Value(false)))
	if q.Currency != "" {
		filt = filt.And(expression.Name("Currency").Equal(expression.Value(q.Currency)))
	}
	if q.AccountID != "" {
		filt = filt.And(expression.Name("AccountID").Equal(expression.Value(q.AccountID)))
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filt).Build()
	if err != nil {
		return nil, fmt.Errorf("building duplicate query: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("querying duplicates: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	var item txnItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("unmarshaling transaction: %w", err)
	}
	return itemToTransaction(q.UserID, item)
}

func itemToTransaction(userID string, item txnItem) (*models.Transaction, error) {
	amount, err := decimal.NewFromString(item.Amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", item.Amount, err)
	}
	date, err := time.Parse(dateFormat, item.Date)
	if err != nil {
		return nil, fmt.Errorf("stored date %q: %w", item.Date, err)
	}
	return &models.Transaction{
		ID:          item.TxnID,
		UserID:      userID,
		AccountID:   item.AccountID,
		Date:        date,
		Amount:      amount,
		Currency:    item.Currency,
		Description: item.Description,
		CategoryID:  item.CategoryID,
		Status:      models.TxnStatus(item.Status),
		Tags:        item.Tags,
		Deleted:     item.Deleted,
	}, nil
}

// CommitBatch writes the batch through TransactWriteItems. Inserts plus
// balance updates above the 100-action cap are split into chunks, with
// every balance delta held back for the final chunk so balances only
// move once all rows are in.
func (s *Store) CommitBatch(ctx context.Context, b store.Batch) error {
	now := time.Now().UTC()

	var puts []types.TransactWriteItem
	for _, t := range b.Inserts {
		id := t.ID
		if id == "" {
			id = ulid.Make().String()
		}
		item, err := attributevalue.MarshalMap(txnItem{
			PK:          userPK(b.UserID),
			SK:          "TXN#" + t.Date.Format(dateFormat) + "#" + id,
			Type:        "transaction",
			TxnID:       id,
			AccountID:   t.AccountID,
			Date:        t.Date.Format(dateFormat),
			Amount:      t.Amount.String(),
			Currency:    t.Currency,
			Description: t.Description,
			CategoryID:  t.CategoryID,
			Status:      string(t.Status),
			Tags:        t.Tags,
			CreatedAt:   now.Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("marshaling transaction: %w", err)
		}
		puts = append(puts, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.table),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(SK)"),
			},
		})
	}

	var updates []types.TransactWriteItem
	accountIDs := make([]string, 0, len(b.BalanceDeltas))
	for id := range b.BalanceDeltas {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)
	for _, accID := range accountIDs {
		updates = append(updates, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(s.table),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: userPK(b.UserID)},
					"SK": &types.AttributeValueMemberS{Value: "ACCOUNT#" + accID},
				},
				UpdateExpression:    aws.String("ADD Balance :delta"),
				ConditionExpression: aws.String("attribute_exists(SK)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":delta": &types.AttributeValueMemberN{Value: b.BalanceDeltas[accID].String()},
				},
			},
		})
	}

	for len(puts) > maxTransactActions-len(updates) && len(puts) > 0 {
		n := maxTransactActions
		if n > len(puts) {
			n = len(puts)
		}
		if err := s.transact(ctx, puts[:n]); err != nil {
			return err
		}
		puts = puts[n:]
	}
	return s.transact(ctx, append(puts, updates...))
}

func (s *Store) transact(ctx context.Context, items []types.TransactWriteItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		s.log.Error("transact write failed", zap.Int("actions", len(items)), zap.Error(err))
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}
