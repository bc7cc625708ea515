package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

const (
	responseSortPrefix   = "RESPONSE#"
	respondentSortPrefix = "RESPONDENT#"
	// fixed width so sort keys order lexicographically by time
	sortKeyTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// DynamoAPI is the subset of the DynamoDB client used by the response store.
type DynamoAPI interface {
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type dynamoResponseItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	ID             string `dynamodbav:"ID"`
	SessionID      string `dynamodbav:"SessionID"`
	RespondentHash string `dynamodbav:"RespondentHash"`
	Answers        string `dynamodbav:"Answers"`
	SubmittedAt    string `dynamodbav:"SubmittedAt"`
}

type dynamoRespondentItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	ResponseID string `dynamodbav:"ResponseID"`
}

// DynamoResponseRepository stores responses in a single DynamoDB table
// partitioned by session. Each response is written together with a
// respondent marker item so a respondent can answer a session only once.
type DynamoResponseRepository struct {
	client    DynamoAPI
	tableName string
}

// NewDynamoResponseRepository constructs the repository.
func NewDynamoResponseRepository(client DynamoAPI, tableName string) *DynamoResponseRepository {
	return &DynamoResponseRepository{client: client, tableName: tableName}
}

func responseSortKey(submittedAt time.Time, id string) string {
	return responseSortPrefix + submittedAt.UTC().Format(sortKeyTimeLayout) + "#" + id
}

// Create appends a response.
func (r *DynamoResponseRepository) Create(ctx context.Context, response *models.Response) error {
	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	if response.SubmittedAt.IsZero() {
		response.SubmittedAt = time.Now().UTC()
	}

	if response.Answers == nil {
		response.Answers = models.Answers{}
	}
	answers, err := json.Marshal(response.Answers)
	if err != nil {
		return fmt.Errorf("marshal response answers: %w", err)
	}

	item, err := attributevalue.MarshalMap(dynamoResponseItem{
		PK:             response.SessionID,
		SK:             responseSortKey(response.SubmittedAt, response.ID),
		ID:             response.ID,
		SessionID:      response.SessionID,
		RespondentHash: response.RespondentHash,
		Answers:        string(answers),
		SubmittedAt:    response.SubmittedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal response item: %w", err)
	}
	marker, err := attributevalue.MarshalMap(dynamoRespondentItem{
		PK:         response.SessionID,
		SK:         respondentSortPrefix + response.RespondentHash,
		ResponseID: response.ID,
	})
	if err != nil {
		return fmt.Errorf("marshal respondent item: %w", err)
	}

	condition := aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)")
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: marker, ConditionExpression: condition}},
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: item, ConditionExpression: condition}},
		},
	})
	if err != nil {
		if isConditionalCheckFailure(err) {
			return appErrors.ErrAlreadySubmitted
		}
		return fmt.Errorf("put response: %w", err)
	}
	return nil
}

func isConditionalCheckFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, reason := range canceled.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func (r *DynamoResponseRepository) queryInput(sessionID string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :session AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":session": &types.AttributeValueMemberS{Value: sessionID},
			":prefix":  &types.AttributeValueMemberS{Value: responseSortPrefix},
		},
		ScanIndexForward: aws.Bool(true),
	}
}

// ListBySession returns every response of a session in ascending submission
// order, ties broken by id. The sort key encodes both, so a forward query
// across all pages yields that order.
func (r *DynamoResponseRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Response, error) {
	input := r.queryInput(sessionID)

	responses := make([]models.Response, 0)
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query responses by session: %w", err)
		}

		var items []dynamoResponseItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal response items: %w", err)
		}
		for _, item := range items {
			response, err := item.toModel()
			if err != nil {
				return nil, err
			}
			responses = append(responses, response)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return responses, nil
}

// CountBySession returns how many responses a session has received.
func (r *DynamoResponseRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	input := r.queryInput(sessionID)
	input.Select = types.SelectCount

	total := 0
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("count responses by session: %w", err)
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return total, nil
}

func (i dynamoResponseItem) toModel() (models.Response, error) {
	submittedAt, err := time.Parse(time.RFC3339Nano, i.SubmittedAt)
	if err != nil {
		return models.Response{}, fmt.Errorf("parse submitted_at of response %s: %w", i.ID, err)
	}
	var answers models.Answers
	if i.Answers != "" {
		if err := json.Unmarshal([]byte(i.Answers), &answers); err != nil {
			return models.Response{}, fmt.Errorf("unmarshal answers of response %s: %w", i.ID, err)
		}
	}
	return models.Response{
		ID:             i.ID,
		SessionID:      i.SessionID,
		RespondentHash: i.RespondentHash,
		Answers:        answers,
		SubmittedAt:    submittedAt,
	}, nil
}
