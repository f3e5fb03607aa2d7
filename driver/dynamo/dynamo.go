// Package dynamo implements the store driver boundary on DynamoDB.
//
// Each collection maps to one table whose partition key is the configured
// key field. Plain filters translate to scan filter expressions; see
// buildFilterExpression for the supported surface. DynamoDB cannot remove a
// list element by value server-side, so Pull field ops are applied
// read-modify-write.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/tether/driver"
)

// Database implements driver.Database on a DynamoDB client.
type Database struct {
	client *dynamodb.Client
	config Config
}

// New creates a Database from an existing client.
func New(client *dynamodb.Client, config Config) *Database {
	config.validate()
	return &Database{client: client, config: config}
}

// Connect bootstraps a Database from the ambient AWS configuration.
func Connect(ctx context.Context, config Config) (*Database, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(awsCfg), config), nil
}

// Collection returns a handle for the named collection.
func (d *Database) Collection(name string) driver.Collection {
	return &Collection{db: d, table: d.config.TablePrefix + name}
}

// Collection is a handle to one DynamoDB-backed collection.
type Collection struct {
	db    *Database
	table string
}

func (c *Collection) KeyField() string { return c.db.config.KeyField }

func (c *Collection) FindByKey(ctx context.Context, key any) (driver.Document, error) {
	av, err := attributevalue.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	result, err := c.db.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key:       map[string]types.AttributeValue{c.KeyField(): av},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, driver.ErrNotFound
	}
	return unmarshalDocument(result.Item)
}

func (c *Collection) FindMatching(ctx context.Context, filter driver.Filter) ([]driver.Document, error) {
	input, matchNone, err := c.scanInput(filter)
	if err != nil || matchNone {
		return nil, err
	}

	var docs []driver.Document
	paginator := dynamodb.NewScanPaginator(c.db.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			doc, err := unmarshalDocument(raw)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (c *Collection) FindPage(ctx context.Context, filter driver.Filter, startToken string, limit int) ([]driver.Document, string, error) {
	input, matchNone, err := c.scanInput(filter)
	if err != nil || matchNone {
		return nil, "", err
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	if startToken != "" {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			c.KeyField(): &types.AttributeValueMemberS{Value: startToken},
		}
	}

	result, err := c.db.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	docs := make([]driver.Document, 0, len(result.Items))
	for _, raw := range result.Items {
		doc, err := unmarshalDocument(raw)
		if err != nil {
			return nil, "", err
		}
		docs = append(docs, doc)
	}

	next := ""
	if last, ok := result.LastEvaluatedKey[c.KeyField()].(*types.AttributeValueMemberS); ok {
		next = last.Value
	}
	return docs, next, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc driver.Document) (driver.Document, error) {
	stored := make(driver.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	if _, ok := stored[c.KeyField()]; !ok {
		stored[c.KeyField()] = uuid.NewString()
	}

	item, err := attributevalue.MarshalMap(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	_, err = c.db.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#key)"),
		ExpressionAttributeNames: map[string]string{"#key": c.KeyField()},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, driver.ErrDuplicateKey
		}
		return nil, err
	}
	return stored, nil
}

func (c *Collection) UpdateMatching(ctx context.Context, filter driver.Filter, ops driver.FieldOps) (int, error) {
	if ops.Empty() {
		return 0, nil
	}
	docs, err := c.FindMatching(ctx, filter)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, doc := range docs {
		if err := c.updateOne(ctx, doc, ops); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (c *Collection) updateOne(ctx context.Context, doc driver.Document, ops driver.FieldOps) error {
	b := newExprBuilder()
	var setClauses, removeClauses []string

	for path, value := range ops.Set {
		ph, err := b.value(value)
		if err != nil {
			return err
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", b.fieldPath(path), ph))
	}
	for _, path := range ops.Unset {
		removeClauses = append(removeClauses, b.fieldPath(path))
	}
	// Pull is read-modify-write: compute the pruned array from the
	// scanned document and SET it back.
	for path, values := range ops.Pull {
		arr, ok := lookupPath(doc, path)
		if !ok {
			continue
		}
		elems, ok := arr.([]any)
		if !ok {
			continue
		}
		pruned := pruneValues(elems, values)
		ph, err := b.value(pruned)
		if err != nil {
			return err
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", b.fieldPath(path), ph))
	}

	var parts []string
	if len(setClauses) > 0 {
		parts = append(parts, "SET "+strings.Join(setClauses, ", "))
	}
	if len(removeClauses) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(removeClauses, ", "))
	}
	if len(parts) == 0 {
		return nil
	}

	keyAV, err := attributevalue.Marshal(doc[c.KeyField()])
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.table),
		Key:                      map[string]types.AttributeValue{c.KeyField(): keyAV},
		UpdateExpression:         aws.String(strings.Join(parts, " ")),
		ExpressionAttributeNames: b.names,
	}
	if len(b.values) > 0 {
		input.ExpressionAttributeValues = b.values
	}
	_, err = c.db.client.UpdateItem(ctx, input)
	return err
}

func (c *Collection) DeleteMatching(ctx context.Context, filter driver.Filter, opts driver.DeleteOptions) (int, error) {
	docs, err := c.FindMatching(ctx, filter)
	if err != nil {
		return 0, err
	}
	if opts.Single && len(docs) > 1 {
		docs = docs[:1]
	}

	count := 0
	for _, doc := range docs {
		keyAV, err := attributevalue.Marshal(doc[c.KeyField()])
		if err != nil {
			return count, fmt.Errorf("marshal key: %w", err)
		}
		_, err = c.db.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(c.table),
			Key:       map[string]types.AttributeValue{c.KeyField(): keyAV},
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (c *Collection) scanInput(filter driver.Filter) (*dynamodb.ScanInput, bool, error) {
	expr, names, values, matchNone, err := buildFilterExpression(filter)
	if err != nil || matchNone {
		return nil, matchNone, err
	}
	input := &dynamodb.ScanInput{TableName: aws.String(c.table)}
	if expr != "" {
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}
	return input, false, nil
}

func unmarshalDocument(item map[string]types.AttributeValue) (driver.Document, error) {
	var doc driver.Document
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// lookupPath walks a dotted path through nested maps.
func lookupPath(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func pruneValues(elems []any, remove []any) []any {
	kept := make([]any, 0, len(elems))
	for _, e := range elems {
		drop := false
		for _, v := range remove {
			if reflect.DeepEqual(e, v) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	return kept
}
