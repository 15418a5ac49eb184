package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/domain/app"
	ddb "github.com/tallyhq/tally/internal/dynamodb"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/logger"
)

// AppRepository stores application records in a DynamoDB table keyed
// by the SDK key.
type AppRepository struct {
	client *ddb.Client
	table  string
	log    *logger.Logger
}

func NewAppRepository(client *ddb.Client, cfg *config.Configuration, log *logger.Logger) *AppRepository {
	return &AppRepository{
		client: client,
		table:  cfg.Store.DynamoDB.AppsTable,
		log:    log,
	}
}

func (r *AppRepository) GetByKey(ctx context.Context, key string) (*app.App, error) {
	out, err := r.client.DB().GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key: map[string]ddbtypes.AttributeValue{
			"app_key": &ddbtypes.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("fetching application").
			Mark(ierr.ErrDatabase)
	}
	if out.Item == nil {
		return nil, ierr.NewErrorf("application with key %q not found", key).
			Mark(ierr.ErrNotFound)
	}

	var a app.App
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, ierr.WithError(err).
			WithHint("decoding application record").
			Mark(ierr.ErrDatabase)
	}
	return &a, nil
}

// AppendDimensions reads, merges and rewrites the catalog. The write
// is not conditional: dimension ids are content addressed, so a lost
// race re-minting the same combination resolves to identical content
// on the next read.
func (r *AppRepository) AppendDimensions(ctx context.Context, appKey string, dims []app.Dimension) error {
	a, err := r.GetByKey(ctx, appKey)
	if err != nil {
		return err
	}

	changed := false
	for _, dim := range dims {
		if _, exists := a.FindDimension(dim); !exists {
			a.Dimensions = append(a.Dimensions, dim)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return ierr.WithError(err).
			WithHint("encoding application record").
			Mark(ierr.ErrDatabase)
	}
	_, err = r.client.DB().PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table,
		Item:      item,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("persisting application dimensions").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *AppRepository) Create(ctx context.Context, a *app.App) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return ierr.WithError(err).
			WithHint("encoding application record").
			Mark(ierr.ErrDatabase)
	}

	cond := "attribute_not_exists(app_key)"
	_, err = r.client.DB().PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                item,
		ConditionExpression: &cond,
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if ierr.As(err, &ccf) {
			return ierr.NewErrorf("application with key %q already exists", a.Key).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("creating application").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
