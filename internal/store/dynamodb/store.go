package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/tallyhq/tally/internal/config"
	ddb "github.com/tallyhq/tally/internal/dynamodb"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/internal/store"
)

const (
	attrCollection = "collection"
	attrDocID      = "doc_id"
)

// Store implements the document-store contract on a single DynamoDB
// table keyed by (collection, doc_id). Dotted bucket paths are kept as
// flat attribute names, which keeps every counter update a single ADD
// expression and every set union a native string-set ADD.
type Store struct {
	client *ddb.Client
	table  string
	log    *logger.Logger
}

func NewStore(client *ddb.Client, cfg *config.Configuration, log *logger.Logger) *Store {
	return &Store{
		client: client,
		table:  cfg.Store.DynamoDB.MetricsTable,
		log:    log,
	}
}

func (s *Store) Apply(ctx context.Context, collection, id string, update store.Update, upsert bool) error {
	err := s.updateItem(ctx, collection, id, update, upsert)
	if isConditionFailed(err) {
		// no matching document and upsert not requested
		return nil
	}
	return err
}

func (s *Store) ApplyMulti(ctx context.Context, collection string, ids []string, update store.Update) (int, error) {
	// DynamoDB has no multi-document update; each id is attempted with
	// an existence condition so absent documents simply do not match.
	matched := 0
	for _, id := range ids {
		err := s.updateItem(ctx, collection, id, update, false)
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return matched, err
		}
		matched++
	}
	return matched, nil
}

func (s *Store) FindOne(ctx context.Context, collection, id string, fields []string) (store.Document, error) {
	out, err := s.client.DB().GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key:       itemKey(collection, id),
	})
	if err != nil {
		return store.Document{}, ierr.WithError(err).
			WithHintf("fetching document %s/%s", collection, id).
			Mark(ierr.ErrDatabase)
	}
	if out.Item == nil {
		return store.Document{}, ierr.NewErrorf("document %s/%s not found", collection, id).
			Mark(ierr.ErrNotFound)
	}
	return decodeItem(out.Item).Project(fields), nil
}

func (s *Store) Find(ctx context.Context, collection string, fields []string) ([]store.Document, error) {
	keyCond := fmt.Sprintf("%s = :c", attrCollection)
	var docs []store.Document
	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := s.client.DB().Query(ctx, &dynamodb.QueryInput{
			TableName:                 &s.table,
			KeyConditionExpression:    &keyCond,
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":c": &ddbtypes.AttributeValueMemberS{Value: collection}},
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("querying collection %s", collection).
				Mark(ierr.ErrDatabase)
		}
		for _, item := range out.Items {
			docs = append(docs, decodeItem(item).Project(fields))
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return docs, nil
}

func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	proj := attrDocID
	out, err := s.client.DB().GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            &s.table,
		Key:                  itemKey(collection, id),
		ProjectionExpression: &proj,
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithHintf("checking document %s/%s", collection, id).
			Mark(ierr.ErrDatabase)
	}
	return out.Item != nil, nil
}

func (s *Store) updateItem(ctx context.Context, collection, id string, update store.Update, upsert bool) error {
	if update.IsZero() {
		return nil
	}

	names := make(map[string]string)
	values := make(map[string]ddbtypes.AttributeValue)
	var addParts, setParts []string
	n := 0

	field := func(path string) string {
		placeholder := "#f" + strconv.Itoa(n)
		names[placeholder] = path
		n++
		return placeholder
	}

	for path, delta := range update.Inc {
		f := field(path)
		v := ":v" + strconv.Itoa(n)
		values[v] = &ddbtypes.AttributeValueMemberN{Value: strconv.FormatFloat(delta, 'f', -1, 64)}
		addParts = append(addParts, f+" "+v)
	}
	for path, members := range update.AddToSet {
		if len(members) == 0 {
			continue
		}
		f := field(path)
		v := ":v" + strconv.Itoa(n)
		values[v] = &ddbtypes.AttributeValueMemberSS{Value: members}
		addParts = append(addParts, f+" "+v)
	}
	for path, value := range update.Set {
		f := field(path)
		v := ":v" + strconv.Itoa(n)
		values[v] = &ddbtypes.AttributeValueMemberS{Value: value}
		setParts = append(setParts, f+" = "+v)
	}

	var exprParts []string
	if len(addParts) > 0 {
		exprParts = append(exprParts, "ADD "+strings.Join(addParts, ", "))
	}
	if len(setParts) > 0 {
		exprParts = append(exprParts, "SET "+strings.Join(setParts, ", "))
	}
	expr := strings.Join(exprParts, " ")

	input := &dynamodb.UpdateItemInput{
		TableName:                 &s.table,
		Key:                       itemKey(collection, id),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if !upsert {
		cond := fmt.Sprintf("attribute_exists(%s)", attrDocID)
		input.ConditionExpression = &cond
	}

	operation := func() error {
		_, err := s.client.DB().UpdateItem(ctx, input)
		if err == nil {
			return nil
		}
		if isThrottle(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	if err != nil && !isConditionFailed(err) {
		s.log.Errorw("dynamodb update failed",
			"collection", collection, "doc_id", id, "error", err)
	}
	return err
}

func itemKey(collection, id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		attrCollection: &ddbtypes.AttributeValueMemberS{Value: collection},
		attrDocID:      &ddbtypes.AttributeValueMemberS{Value: id},
	}
}

func decodeItem(item map[string]ddbtypes.AttributeValue) store.Document {
	doc := store.Document{Fields: make(map[string]any, len(item))}
	for name, av := range item {
		switch v := av.(type) {
		case *ddbtypes.AttributeValueMemberN:
			f, err := strconv.ParseFloat(v.Value, 64)
			if err == nil {
				doc.Fields[name] = f
			}
		case *ddbtypes.AttributeValueMemberS:
			if name == attrDocID {
				doc.ID = v.Value
				continue
			}
			if name == attrCollection {
				continue
			}
			doc.Fields[name] = v.Value
		case *ddbtypes.AttributeValueMemberSS:
			doc.Fields[name] = v.Value
		}
	}
	return doc
}

func isConditionFailed(err error) bool {
	var ccf *ddbtypes.ConditionalCheckFailedException
	return ierr.As(err, &ccf)
}

func isThrottle(err error) bool {
	var pte *ddbtypes.ProvisionedThroughputExceededException
	return ierr.As(err, &pte)
}
