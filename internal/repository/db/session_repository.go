package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mvtan/jigsaw/internal/domain"
)

// SessionRepository manages DynamoDB interactions for encode session records.
type SessionRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewSessionRepository initializes a new SessionRepository.
func NewSessionRepository(client *dynamodb.Client, tableName string) SessionRepository {
	return SessionRepository{
		client:    client,
		tableName: tableName,
	}
}

// CreateSession stores one encode session record.
func (repo *SessionRepository) CreateSession(ctx context.Context, record domain.SessionRecord) (domain.SessionRecord, error) {
	recordMap, err := attributevalue.MarshalMap(record)
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to marshal session record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(repo.tableName),
		Item:      recordMap,
	}

	if _, err := repo.client.PutItem(ctx, input); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to create session record: %w", err)
	}

	return record, nil
}

// GetSession retrieves one session record by directory and source file name.
func (repo *SessionRepository) GetSession(ctx context.Context, directory, fileName string) (domain.SessionRecord, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(repo.tableName),
		Key: map[string]types.AttributeValue{
			"directory": &types.AttributeValueMemberS{Value: directory},
			"file_name": &types.AttributeValueMemberS{Value: fileName},
		},
	}

	result, err := repo.client.GetItem(ctx, input)
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to get session record: %w", err)
	}

	if result.Item == nil {
		return domain.SessionRecord{}, errors.New("session record not found")
	}

	var record domain.SessionRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to unmarshal session record: %w", err)
	}

	return record, nil
}

// ListSessionsByDirectory retrieves all session records for one fragment
// directory.
func (repo *SessionRepository) ListSessionsByDirectory(ctx context.Context, directory string) ([]domain.SessionRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(repo.tableName),
		KeyConditionExpression: aws.String("#directory = :directory"),
		ExpressionAttributeNames: map[string]string{
			"#directory": "directory",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":directory": &types.AttributeValueMemberS{Value: directory},
		},
	}

	result, err := repo.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query session records: %w", err)
	}

	var records []domain.SessionRecord
	for _, item := range result.Items {
		var record domain.SessionRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

// DeleteSession removes one session record.
func (repo *SessionRepository) DeleteSession(ctx context.Context, directory, fileName string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(repo.tableName),
		Key: map[string]types.AttributeValue{
			"directory": &types.AttributeValueMemberS{Value: directory},
			"file_name": &types.AttributeValueMemberS{Value: fileName},
		},
	}

	if _, err := repo.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}
