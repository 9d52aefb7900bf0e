// Package db initializes the DynamoDB handle for the reservation table.
package db

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Environment variables consumed at startup.
const (
	// EnvEventsTable names the reservation table. Required.
	EnvEventsTable = "EVENTS_TABLE"

	// EnvUsersFile is the path to the users JSON file. Required by callers
	// wiring the user directory.
	EnvUsersFile = "USERS_FILE"

	// EnvEndpoint overrides the DynamoDB endpoint (DynamoDB Local).
	EnvEndpoint = "DYNAMODB_ENDPOINT"
)

// Handle is an initialized connection to the reservation table.
type Handle struct {
	Client *dynamodb.Client
	Table  string
}

// Connect loads AWS configuration, builds the client and verifies the
// table exists with a DescribeTable round-trip. Initialization is eager: a
// missing or misconfigured table fails the process at startup, not on the
// first request.
func Connect(ctx context.Context) (*Handle, error) {
	table := os.Getenv(EnvEventsTable)
	if table == "" {
		return nil, fmt.Errorf("missing env %s", EnvEventsTable)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var optFns []func(*dynamodb.Options)
	if endpoint := os.Getenv(EnvEndpoint); endpoint != "" {
		optFns = append(optFns, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	client := dynamodb.NewFromConfig(cfg, optFns...)

	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	}); err != nil {
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}

	return &Handle{Client: client, Table: table}, nil
}
