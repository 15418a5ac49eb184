package dynamodb

import (
	"context"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/domain/appuser"
	ddb "github.com/tallyhq/tally/internal/dynamodb"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/logger"
)

// AppUserRepository stores user records in a DynamoDB table keyed by
// (app_id, uid).
type AppUserRepository struct {
	client *ddb.Client
	table  string
	log    *logger.Logger
}

func NewAppUserRepository(client *ddb.Client, cfg *config.Configuration, log *logger.Logger) *AppUserRepository {
	return &AppUserRepository{
		client: client,
		table:  cfg.Store.DynamoDB.AppUsersTable,
		log:    log,
	}
}

func (r *AppUserRepository) Get(ctx context.Context, appID, userID string) (*appuser.AppUser, error) {
	out, err := r.client.DB().GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key:       r.key(appID, userID),
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("fetching app user").
			Mark(ierr.ErrDatabase)
	}
	if out.Item == nil {
		return nil, ierr.NewErrorf("app user %s not found", userID).
			Mark(ierr.ErrNotFound)
	}

	var u appuser.AppUser
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, ierr.WithError(err).
			WithHint("decoding app user record").
			Mark(ierr.ErrDatabase)
	}
	return &u, nil
}

func (r *AppUserRepository) SetDimensions(ctx context.Context, appID, userID string, dims []app.Dimension) error {
	marshaled, err := attributevalue.Marshal(dims)
	if err != nil {
		return ierr.WithError(err).
			WithHint("encoding user dimensions").
			Mark(ierr.ErrDatabase)
	}

	expr := "SET dm = :dm"
	return r.update(ctx, appID, userID, expr, map[string]ddbtypes.AttributeValue{
		":dm": marshaled,
	})
}

func (r *AppUserRepository) AddSessionDuration(ctx context.Context, appID, userID string, seconds int64) error {
	expr := "ADD sd :s, tsd :s"
	return r.update(ctx, appID, userID, expr, map[string]ddbtypes.AttributeValue{
		":s": numberAttr(seconds),
	})
}

func (r *AppUserRepository) ResetSessionDuration(ctx context.Context, appID, userID string) error {
	expr := "SET sd = :zero"
	return r.update(ctx, appID, userID, expr, map[string]ddbtypes.AttributeValue{
		":zero": numberAttr(0),
	})
}

func (r *AppUserRepository) RecordSession(ctx context.Context, appID, userID string, props appuser.SessionProps) error {
	values := map[string]ddbtypes.AttributeValue{
		":one": numberAttr(1),
		":ls":  numberAttr(props.LastSeen),
	}
	setParts := []string{"ls = :ls"}

	stringProps := map[string]string{
		"did": props.DeviceID,
		"cc":  props.CountryCode,
		"d":   props.Device,
		"c":   props.Carrier,
		"p":   props.Platform,
		"pv":  props.PlatformVersion,
		"av":  props.AppVersion,
	}
	for attr, value := range stringProps {
		if value == "" {
			continue
		}
		placeholder := ":" + attr
		values[placeholder] = &ddbtypes.AttributeValueMemberS{Value: value}
		setParts = append(setParts, attr+" = "+placeholder)
	}

	expr := "ADD sc :one SET " + strings.Join(setParts, ", ")
	return r.update(ctx, appID, userID, expr, values)
}

func (r *AppUserRepository) update(ctx context.Context, appID, userID, expr string, values map[string]ddbtypes.AttributeValue) error {
	_, err := r.client.DB().UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.table,
		Key:                       r.key(appID, userID),
		UpdateExpression:          &expr,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("updating app user record").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *AppUserRepository) key(appID, userID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"app_id": &ddbtypes.AttributeValueMemberS{Value: appID},
		"uid":    &ddbtypes.AttributeValueMemberS{Value: userID},
	}
}

func numberAttr(n int64) ddbtypes.AttributeValue {
	return &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
