package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/nholm/housecal/internal/nights"
)

const (
	pkEvent = "EVENT"
	pkSlot  = "SLOT"

	startDateIndex = "startDateIndex"
)

// DynamoAPI is the subset of the DynamoDB client the engine uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Directory reports whether a reservation title names a known user.
type Directory interface {
	IsValid(name string) bool
}

// Event is a reservation of the house for the nights in [Start, End).
// End is the checkout day and is always exclusive. Version increments on
// every successful update and guards against stale writes.
type Event struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Version int64  `json:"version"`
}

// eventRow is the persisted shape of an Event.
type eventRow struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Title     string `dynamodbav:"title"`
	StartDate string `dynamodbav:"startDate"`
	EndDate   string `dynamodbav:"endDate"`
	Version   int64  `dynamodbav:"version"`
}

// slotRow reserves one night for one event.
type slotRow struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	EventID string `dynamodbav:"eventId"`
}

// Model is the allocation and query engine over the reservation table.
// It holds no mutable state; all exclusion comes from conditional writes,
// so any number of Model instances (or Lambda workers) may run concurrently.
type Model struct {
	client DynamoAPI
	table  string
	users  Directory
}

// NewModel binds the engine to a DynamoDB client, a table and the user
// directory consulted during validation.
func NewModel(client DynamoAPI, table string, users Directory) *Model {
	return &Model{client: client, table: table, users: users}
}

// List returns all reservations whose start date falls in [start, end].
//
// Note this is a start-indexed scan, not an interval-overlap query: a
// reservation that starts before the window but ends inside it is not
// returned. Callers wanting a calendar view pass a window padded by the
// maximum stay length.
func (m *Model) List(ctx context.Context, start, end string) ([]Event, error) {
	if start == "" || end == "" {
		return nil, newError(CodeStartEndRequired, "start and end params are required")
	}
	if end <= start {
		return nil, newError(CodeEndBeforeStart, "end date must be after start date")
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(m.table),
		IndexName:              aws.String(startDateIndex),
		KeyConditionExpression: aws.String("#PK = :PK AND startDate BETWEEN :start AND :end"),
		ExpressionAttributeNames: map[string]string{
			"#PK": "PK",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":PK":    &types.AttributeValueMemberS{Value: pkEvent},
			":start": &types.AttributeValueMemberS{Value: start},
			":end":   &types.AttributeValueMemberS{Value: end},
		},
	}

	var events []Event
	paginator := dynamodb.NewQueryPaginator(m.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			event, err := unmarshalEvent(raw)
			if err != nil {
				return nil, err
			}
			events = append(events, event)
		}
	}

	return events, nil
}

// Get returns the reservation with the given id.
func (m *Model) Get(ctx context.Context, id string) (Event, error) {
	result, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.table),
		Key:       eventKey(id),
	})
	if err != nil {
		return Event{}, err
	}
	if result.Item == nil {
		return Event{}, newError(CodeNotFound, "event not found")
	}
	return unmarshalEvent(result.Item)
}

// Create validates the reservation, assigns it a fresh id at version 0 and
// commits the reservation row together with one slot per night in a single
// transaction. If any night is already taken the whole transaction rolls
// back and Create returns CodeOverlaps.
func (m *Model) Create(ctx context.Context, event Event) (Event, error) {
	if err := m.validate(event); err != nil {
		return Event{}, err
	}

	event.ID = uuid.NewString()
	event.Version = 0

	row, err := attributevalue.MarshalMap(eventRow{
		PK:        pkEvent,
		SK:        event.ID,
		Title:     event.Title,
		StartDate: event.Start,
		EndDate:   event.End,
		Version:   0,
	})
	if err != nil {
		return Event{}, fmt.Errorf("marshal event: %w", err)
	}

	// The id is fresh, so only the slot conditions can actually contend
	// with concurrent creates.
	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(m.table),
			Item:                row,
			ConditionExpression: aws.String("attribute_not_exists(SK)"),
		},
	}}

	dates, err := nights.Dates(event.Start, event.End)
	if err != nil {
		return Event{}, err
	}
	for _, date := range dates {
		slot, err := attributevalue.MarshalMap(slotRow{PK: pkSlot, SK: date, EventID: event.ID})
		if err != nil {
			return Event{}, fmt.Errorf("marshal slot: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(m.table),
				Item:                slot,
				ConditionExpression: aws.String("attribute_not_exists(SK)"),
			},
		})
	}

	_, err = m.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return Event{}, mapCreateCancel(err)
	}
	return event, nil
}

// BatchCreate creates the events in order, stopping at the first failure.
func (m *Model) BatchCreate(ctx context.Context, toCreate []Event) ([]Event, error) {
	created := make([]Event, 0, len(toCreate))
	for _, event := range toCreate {
		c, err := m.Create(ctx, event)
		if err != nil {
			return created, err
		}
		created = append(created, c)
	}
	return created, nil
}

// Update replaces title/start/end of an existing reservation. The caller
// passes the reservation as last read (existing) and the desired state
// (patch, carrying the same id). The row update is guarded by
// existing.Version; added nights are put conditionally and removed nights
// deleted, all in one transaction.
func (m *Model) Update(ctx context.Context, existing, patch Event) (Event, error) {
	if err := m.validate(patch); err != nil {
		return Event{}, err
	}

	oldDates, err := nights.Dates(existing.Start, existing.End)
	if err != nil {
		return Event{}, err
	}
	newDates, err := nights.Dates(patch.Start, patch.End)
	if err != nil {
		return Event{}, err
	}
	added, removed := nights.Diff(oldDates, newDates)

	items := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName:           aws.String(m.table),
			Key:                 eventKey(patch.ID),
			UpdateExpression:    aws.String("SET #start = :start, #end = :end, title = :title, version = version + :one"),
			ConditionExpression: aws.String("version = :version"),
			ExpressionAttributeNames: map[string]string{
				"#start": "startDate",
				"#end":   "endDate",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(existing.Version, 10)},
				":one":     &types.AttributeValueMemberN{Value: "1"},
				":start":   &types.AttributeValueMemberS{Value: patch.Start},
				":end":     &types.AttributeValueMemberS{Value: patch.End},
				":title":   &types.AttributeValueMemberS{Value: patch.Title},
			},
		},
	}}

	for _, date := range added {
		slot, err := attributevalue.MarshalMap(slotRow{PK: pkSlot, SK: date, EventID: patch.ID})
		if err != nil {
			return Event{}, fmt.Errorf("marshal slot: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(m.table),
				Item:                slot,
				ConditionExpression: aws.String("attribute_not_exists(SK)"),
			},
		})
	}
	for _, date := range removed {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(m.table),
				Key:       slotKey(date),
			},
		})
	}

	_, err = m.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return Event{}, mapUpdateCancel(err)
	}

	patch.Version = existing.Version + 1
	return patch, nil
}

// Remove deletes the reservation row (guarded by event.Version) and every
// night it occupies in one transaction. A stale version returns CodeUpdated
// and leaves the reservation and its nights intact.
func (m *Model) Remove(ctx context.Context, event Event) error {
	items := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName:           aws.String(m.table),
			Key:                 eventKey(event.ID),
			ConditionExpression: aws.String("version = :version"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(event.Version, 10)},
			},
		},
	}}

	dates, err := nights.Dates(event.Start, event.End)
	if err != nil {
		return err
	}
	for _, date := range dates {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(m.table),
				Key:       slotKey(date),
			},
		})
	}

	_, err = m.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return mapRemoveCancel(err)
	}
	return nil
}

// RemoveYear removes every reservation starting in the given calendar year
// and returns how many were removed. Used by scheduled maintenance.
func (m *Model) RemoveYear(ctx context.Context, year string) (int, error) {
	listed, err := m.List(ctx, year+"-01-01", year+"-12-31")
	if err != nil {
		return 0, err
	}
	for i, event := range listed {
		if err := m.Remove(ctx, event); err != nil {
			return i, err
		}
	}
	return len(listed), nil
}

func eventKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkEvent},
		"SK": &types.AttributeValueMemberS{Value: id},
	}
}

func slotKey(date string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkSlot},
		"SK": &types.AttributeValueMemberS{Value: date},
	}
}

func unmarshalEvent(raw map[string]types.AttributeValue) (Event, error) {
	var row eventRow
	if err := attributevalue.UnmarshalMap(raw, &row); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if row.SK == "" || row.Title == "" || row.StartDate == "" || row.EndDate == "" {
		return Event{}, newError(CodeValidation, "event data is invalid")
	}
	return Event{
		ID:      row.SK,
		Title:   row.Title,
		Start:   row.StartDate,
		End:     row.EndDate,
		Version: row.Version,
	}, nil
}

const conditionalCheckFailed = "ConditionalCheckFailed"

func reasonCode(reason types.CancellationReason) string {
	if reason.Code == nil {
		return "None"
	}
	return *reason.Code
}

// mapCreateCancel interprets a transaction cancellation for Create. Item 0
// is the reservation row put; the rest are slot puts. A failed slot
// condition means exactly one conflicting write won the race.
func mapCreateCancel(err error) error {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) || len(txErr.CancellationReasons) == 0 {
		return err
	}
	reasons := txErr.CancellationReasons

	if code := reasonCode(reasons[0]); code != "None" {
		// The id is freshly minted, so even a condition failure here is
		// unexpected and not caller-recoverable.
		return fmt.Errorf("transaction canceled, event put failed (%s): %w", code, err)
	}

	for _, reason := range reasons[1:] {
		switch code := reasonCode(reason); code {
		case conditionalCheckFailed:
			return newError(CodeOverlaps, "event overlaps with another")
		case "None":
		default:
			return fmt.Errorf("transaction canceled, slot put failed (%s): %w", code, err)
		}
	}
	return err
}

// mapUpdateCancel interprets a transaction cancellation for Update. The row
// condition is checked first: a stale version outranks any slot conflict.
func mapUpdateCancel(err error) error {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) || len(txErr.CancellationReasons) == 0 {
		return err
	}
	reasons := txErr.CancellationReasons

	if code := reasonCode(reasons[0]); code != "None" {
		if code == conditionalCheckFailed {
			return newError(CodeUpdated, "event was updated by another user")
		}
		return fmt.Errorf("transaction canceled, event update failed (%s): %w", code, err)
	}

	for _, reason := range reasons[1:] {
		switch code := reasonCode(reason); code {
		case conditionalCheckFailed:
			return newError(CodeOverlaps, "event overlaps with another")
		case "None":
		default:
			return fmt.Errorf("transaction canceled, slot put failed (%s): %w", code, err)
		}
	}
	return err
}

// mapRemoveCancel interprets a transaction cancellation for Remove. Slot
// deletes are unconditional, so only the row condition can fail.
func mapRemoveCancel(err error) error {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) || len(txErr.CancellationReasons) == 0 {
		return err
	}
	if reasonCode(txErr.CancellationReasons[0]) == conditionalCheckFailed {
		return newError(CodeUpdated, "event was updated by another user")
	}
	return fmt.Errorf("transaction canceled: %w", err)
}
