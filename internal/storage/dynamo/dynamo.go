// Package dynamo implements storage.Store on a single DynamoDB table. Every
// record is an item whose partition key is the collection name and whose sort
// key is the record id.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

const (
	partitionKey = "pk"
	sortKey      = "sk"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *sdk.GetItemInput, opts ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, in *sdk.PutItemInput, opts ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, opts ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Query(ctx context.Context, in *sdk.QueryInput, opts ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	DescribeTable(ctx context.Context, in *sdk.DescribeTableInput, opts ...func(*sdk.Options)) (*sdk.DescribeTableOutput, error)
}

// Config holds the connection settings.
type Config struct {
	Table           string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type Store struct {
	client API
	table  string
}

var _ storage.Store = (*Store)(nil)

// NewClient builds a DynamoDB client. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (*sdk.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Open connects to DynamoDB and returns a store on cfg.Table.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg.Table), nil
}

func New(client API, tableName string) *Store {
	return &Store{client: client, table: tableName}
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &sdk.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (table.Record, error) {
	c, err := storage.Lookup(collection)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(collection, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", collection, id, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
	}
	return fromItem(c, out.Item)
}

func (s *Store) Find(ctx context.Context, collection string, q storage.Query) ([]table.Record, error) {
	c, err := storage.Lookup(collection)
	if err != nil {
		return nil, err
	}
	if err := c.CheckQuery(q); err != nil {
		return nil, err
	}
	all, err := s.scanCollection(ctx, c)
	if err != nil {
		return nil, err
	}
	return storage.Select(all, q), nil
}

func (s *Store) Count(ctx context.Context, collection string, where ...storage.Predicate) (int, error) {
	recs, err := s.Find(ctx, collection, storage.Query{Where: where})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (s *Store) Insert(ctx context.Context, collection string, rec table.Record) (string, error) {
	c, err := storage.Lookup(collection)
	if err != nil {
		return "", err
	}
	norm, err := c.Normalize(rec)
	if err != nil {
		return "", err
	}
	id, _ := norm["id"].(string)
	if id == "" {
		id = uuid.NewString()
		norm["id"] = id
	}
	if err := s.checkUnique(ctx, c, norm); err != nil {
		return "", err
	}
	if err := s.put(ctx, collection, norm, "attribute_not_exists(sk)"); err != nil {
		if isConditionFailed(err) {
			return "", fmt.Errorf("insert %s: %w", collection, core.ErrConflict)
		}
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, changes table.Record) error {
	c, err := storage.Lookup(collection)
	if err != nil {
		return err
	}
	norm, err := c.Normalize(storage.Without(changes, "id"))
	if err != nil {
		return err
	}
	current, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range norm {
		current[k] = v
	}
	if err := s.checkUnique(ctx, c, current); err != nil {
		return err
	}
	if err := s.put(ctx, collection, current, "attribute_exists(sk)"); err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
		}
		return fmt.Errorf("update %s %s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := storage.Lookup(collection); err != nil {
		return err
	}
	_, err := s.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 key(collection, id),
		ConditionExpression: aws.String("attribute_exists(sk)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
		}
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, collection string, rec table.Record, condition string) error {
	item, err := toItem(collection, rec)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	return err
}

// scanCollection reads every item of one partition, following pagination.
func (s *Store) scanCollection(ctx context.Context, c storage.Collection) ([]table.Record, error) {
	var (
		out   []table.Record
		start map[string]types.AttributeValue
	)
	for {
		resp, err := s.client.Query(ctx, &sdk.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: c.Name},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", c.Name, err)
		}
		for _, item := range resp.Items {
			rec, err := fromItem(c, item)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = resp.LastEvaluatedKey
	}
}

func (s *Store) checkUnique(ctx context.Context, c storage.Collection, rec table.Record) error {
	if len(c.UniqueKeys()) == 0 {
		return nil
	}
	existing, err := s.scanCollection(ctx, c)
	if err != nil {
		return err
	}
	if c.Conflicts(existing, rec) {
		return fmt.Errorf("%s: %w", c.Name, core.ErrConflict)
	}
	return nil
}

func key(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		partitionKey: &types.AttributeValueMemberS{Value: collection},
		sortKey:      &types.AttributeValueMemberS{Value: id},
	}
}

func toItem(collection string, rec table.Record) (map[string]types.AttributeValue, error) {
	fields := make(map[string]any, len(rec))
	for k, v := range rec {
		if v != nil {
			fields[k] = v
		}
	}
	item, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal %s item: %w", collection, err)
	}
	item[partitionKey] = &types.AttributeValueMemberS{Value: collection}
	item[sortKey] = &types.AttributeValueMemberS{Value: rec["id"].(string)}
	return item, nil
}

// fromItem decodes an item and coerces its attributes back to the column
// kinds; absent attributes come back as nil.
func fromItem(c storage.Collection, item map[string]types.AttributeValue) (table.Record, error) {
	var raw map[string]any
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal %s item: %w", c.Name, err)
	}
	delete(raw, partitionKey)
	delete(raw, sortKey)
	for k := range raw {
		if !c.Has(k) {
			delete(raw, k)
		}
	}
	rec, err := c.Normalize(table.Record(raw))
	if err != nil {
		return nil, err
	}
	for _, field := range c.Fields() {
		if _, ok := rec[field]; !ok {
			rec[field] = nil
		}
	}
	return rec, nil
}

func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}
