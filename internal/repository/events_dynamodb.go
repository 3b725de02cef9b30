package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/set-night/terranote/internal/domain"
)

const (
	eventsPK    = "EVENTS"
	skCounter   = "COUNTER"
	skPrefixEvt = "EVT#"
)

// dynamodbAPI is the subset of the DynamoDB client used by DynamoEventLog.
type dynamodbAPI interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoEventLog stores events under a single partition. Seq is allocated
// from an atomic counter item and zero-padded into the sort key so that
// lexical order matches numeric order.
type DynamoEventLog struct {
	api       dynamodbAPI
	tableName string
}

func NewDynamoEventLog(api dynamodbAPI, tableName string) (*DynamoEventLog, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoEventLog{api: api, tableName: tableName}, nil
}

func eventSK(seq int64) string {
	return fmt.Sprintf("%s%020d", skPrefixEvt, seq)
}

func (l *DynamoEventLog) nextSeq(ctx context.Context) (int64, error) {
	out, err := l.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventsPK},
			"SK": &types.AttributeValueMemberS{Value: skCounter},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("repository: allocate seq: %w", err)
	}
	if out == nil {
		return 0, errors.New("repository: allocate seq: empty response")
	}
	return int64Attr(out.Attributes, "seq")
}

func (l *DynamoEventLog) Append(ctx context.Context, ev domain.CallbackEvent) (domain.CallbackEvent, error) {
	seq, err := l.nextSeq(ctx)
	if err != nil {
		return domain.CallbackEvent{}, err
	}
	ev.Seq = seq
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err = l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                eventItem(ev),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return domain.CallbackEvent{}, fmt.Errorf("repository: put event %d: %w", seq, err)
	}
	return ev, nil
}

func (l *DynamoEventLog) List(ctx context.Context, since int64, limit int) ([]domain.CallbackEvent, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: eventsPK},
			":from": &types.AttributeValueMemberS{Value: eventSK(since + 1)},
			":to":   &types.AttributeValueMemberS{Value: eventSK(math.MaxInt64)},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := l.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: list events: %w", err)
	}

	events := make([]domain.CallbackEvent, 0, len(out.Items))
	for _, item := range out.Items {
		ev, err := itemToEvent(item)
		if err != nil {
			return nil, fmt.Errorf("repository: list events unmarshal: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func eventItem(ev domain.CallbackEvent) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: eventsPK},
		"SK":        &types.AttributeValueMemberS{Value: eventSK(ev.Seq)},
		"seq":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ev.Seq, 10)},
		"type":      &types.AttributeValueMemberS{Value: ev.Type},
		"noteId":    &types.AttributeValueMemberN{Value: strconv.FormatInt(ev.Payload.NoteID, 10)},
		"createdAt": &types.AttributeValueMemberS{Value: ev.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

func itemToEvent(item map[string]types.AttributeValue) (domain.CallbackEvent, error) {
	seq, err := int64Attr(item, "seq")
	if err != nil {
		return domain.CallbackEvent{}, err
	}
	typ, err := strAttr(item, "type")
	if err != nil {
		return domain.CallbackEvent{}, err
	}
	noteID, err := int64Attr(item, "noteId")
	if err != nil {
		return domain.CallbackEvent{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.CallbackEvent{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return domain.CallbackEvent{}, fmt.Errorf("repository: parse createdAt: %w", err)
	}

	return domain.CallbackEvent{
		Seq:       seq,
		Type:      typ,
		Payload:   domain.CallbackPayload{NoteID: noteID},
		CreatedAt: createdAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
