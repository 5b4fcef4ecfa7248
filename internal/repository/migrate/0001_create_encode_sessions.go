// Package migrate holds the DynamoDB table migrations for the encode
// session registry.
package migrate

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	EncodeSessionsTableName = "encode_sessions"
	EncodeSessionsVersion   = "20250902000000_encode_sessions_table"
)

// Migration is one reversible schema step.
type Migration interface {
	Version() string
	TableName() string
	Up(ctx context.Context, client *dynamodb.Client) error
	Down(ctx context.Context, client *dynamodb.Client) error
}

// Migrations returns all migrations in application order.
func Migrations() []Migration {
	return []Migration{
		&CreateEncodeSessionsTable{},
	}
}

// CreateEncodeSessionsTable creates the registry table keyed by fragment
// directory and source file name.
type CreateEncodeSessionsTable struct{}

func (m *CreateEncodeSessionsTable) Version() string {
	return EncodeSessionsVersion
}

func (m *CreateEncodeSessionsTable) TableName() string {
	return EncodeSessionsTableName
}

func (m *CreateEncodeSessionsTable) Up(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("directory"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("file_name"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("directory"),
				KeyType:       types.KeyTypeHash, // Partition Key
			},
			{
				AttributeName: aws.String("file_name"),
				KeyType:       types.KeyTypeRange, // Sort Key
			},
		},
		TableName:   aws.String(EncodeSessionsTableName),
		BillingMode: types.BillingModePayPerRequest,
		Tags: []types.Tag{
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("EncodeSessionRegistry"),
			},
		},
	}

	if _, err := client.CreateTable(ctx, input); err != nil {
		return err
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(EncodeSessionsTableName),
	}, 5*time.Minute)
}

func (m *CreateEncodeSessionsTable) Down(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(EncodeSessionsTableName),
	})
	return err
}
