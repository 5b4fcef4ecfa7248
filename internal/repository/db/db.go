package db

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"

	"github.com/mvtan/jigsaw/internal/repository/migrate"
)

// DynamoDb wraps the DynamoDB client backing the encode session registry.
type DynamoDb struct {
	Client        *dynamodb.Client
	TaggingClient *resourcegroupstaggingapi.Client
}

// NewDatabase creates the DynamoDB clients from the shared AWS configuration.
func NewDatabase(awsConfig aws.Config) (*DynamoDb, error) {
	client := dynamodb.NewFromConfig(awsConfig)
	if client == nil {
		return nil, fmt.Errorf("failed to create DynamoDB client")
	}

	taggingClient := resourcegroupstaggingapi.NewFromConfig(awsConfig)
	if taggingClient == nil {
		return nil, fmt.Errorf("failed to create Resource Groups Tagging API client")
	}

	return &DynamoDb{
		Client:        client,
		TaggingClient: taggingClient,
	}, nil
}

// MigrateDb applies all registry migrations.
func (d *DynamoDb) MigrateDb(ctx context.Context) error {
	for _, m := range migrate.Migrations() {
		if err := m.Up(ctx, d.Client); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Version(), err)
		}
	}
	return nil
}

// RegistryTables returns the ARNs of DynamoDB tables tagged as encode
// session registries.
func (d *DynamoDb) RegistryTables(ctx context.Context) ([]string, error) {
	out, err := d.TaggingClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
		ResourceTypeFilters: []string{"dynamodb:table"},
		TagFilters: []taggingtypes.TagFilter{
			{Key: aws.String("Purpose"), Values: []string{"EncodeSessionRegistry"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up registry tables: %w", err)
	}

	var arns []string
	for _, mapping := range out.ResourceTagMappingList {
		arns = append(arns, aws.ToString(mapping.ResourceARN))
	}
	return arns, nil
}

// MigrateDown rolls back all registry migrations in reverse order.
func (d *DynamoDb) MigrateDown(ctx context.Context) error {
	migrations := migrate.Migrations()
	for i := len(migrations) - 1; i >= 0; i-- {
		if err := migrations[i].Down(ctx, d.Client); err != nil {
			return fmt.Errorf("rollback of %s failed: %w", migrations[i].Version(), err)
		}
	}
	return nil
}
