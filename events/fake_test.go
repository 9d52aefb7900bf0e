package events_test

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for DynamoDB implementing the three
// calls the engine makes. Transactions are linearizable (one mutex) and
// all-or-nothing: conditions are evaluated against the current state first,
// and nothing is applied unless every item passes, mirroring
// TransactWriteItems semantics.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func numberAttr(item map[string]types.AttributeValue, name string) int64 {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		return n
	}
	return 0
}

func storageKey(item map[string]types.AttributeValue) string {
	return stringAttr(item, "PK") + "|" + stringAttr(item, "SK")
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	dup := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		dup[k] = v
	}
	return dup
}

// has reports whether an item with the given PK/SK exists. Test helper.
func (f *fakeDynamo) has(pk, sk string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[pk+"|"+sk]
	return ok
}

// count returns the number of stored items with the given PK. Test helper.
func (f *fakeDynamo) count(pk string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, item := range f.items {
		if stringAttr(item, "PK") == pk {
			n++
		}
	}
	return n
}

func (f *fakeDynamo) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[storageKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

// Query serves the one query shape the engine issues: startDateIndex,
// PK equality plus BETWEEN on startDate.
func (f *fakeDynamo) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk := stringAttr(params.ExpressionAttributeValues, ":PK")
	start := stringAttr(params.ExpressionAttributeValues, ":start")
	end := stringAttr(params.ExpressionAttributeValues, ":end")

	var matches []map[string]types.AttributeValue
	for _, item := range f.items {
		if stringAttr(item, "PK") != pk {
			continue
		}
		startDate := stringAttr(item, "startDate")
		if startDate == "" || startDate < start || startDate > end {
			continue
		}
		matches = append(matches, copyItem(item))
	}
	// GSI range key ordering.
	sort.Slice(matches, func(i, j int) bool {
		return stringAttr(matches[i], "startDate") < stringAttr(matches[j], "startDate")
	})

	return &dynamodb.QueryOutput{Items: matches, Count: int32(len(matches))}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false

	for i, item := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		switch {
		case item.Put != nil:
			// The engine only ever guards puts with attribute_not_exists(SK).
			if item.Put.ConditionExpression != nil {
				if _, exists := f.items[storageKey(item.Put.Item)]; exists {
					reasons[i].Code = aws.String("ConditionalCheckFailed")
					failed = true
				}
			}
		case item.Update != nil:
			if !f.versionMatches(item.Update.Key, item.Update.ExpressionAttributeValues) {
				reasons[i].Code = aws.String("ConditionalCheckFailed")
				failed = true
			}
		case item.Delete != nil:
			if item.Delete.ConditionExpression != nil {
				if !f.versionMatches(item.Delete.Key, item.Delete.ExpressionAttributeValues) {
					reasons[i].Code = aws.String("ConditionalCheckFailed")
					failed = true
				}
			}
		}
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, item := range params.TransactItems {
		switch {
		case item.Put != nil:
			f.items[storageKey(item.Put.Item)] = copyItem(item.Put.Item)
		case item.Update != nil:
			f.applyEventUpdate(item.Update)
		case item.Delete != nil:
			delete(f.items, storageKey(item.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) versionMatches(key map[string]types.AttributeValue, values map[string]types.AttributeValue) bool {
	item, exists := f.items[storageKey(key)]
	if !exists {
		return false
	}
	expected, ok := values[":version"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	want, err := strconv.ParseInt(expected.Value, 10, 64)
	if err != nil {
		return false
	}
	return numberAttr(item, "version") == want
}

// applyEventUpdate applies the single update expression the engine issues:
// SET #start = :start, #end = :end, title = :title, version = version + :one.
func (f *fakeDynamo) applyEventUpdate(update *types.Update) {
	item := f.items[storageKey(update.Key)]
	values := update.ExpressionAttributeValues

	item["startDate"] = values[":start"]
	item["endDate"] = values[":end"]
	item["title"] = values[":title"]

	one, _ := strconv.ParseInt(stringNumber(values[":one"]), 10, 64)
	item["version"] = &types.AttributeValueMemberN{
		Value: strconv.FormatInt(numberAttr(item, "version")+one, 10),
	}
}

func stringNumber(v types.AttributeValue) string {
	if n, ok := v.(*types.AttributeValueMemberN); ok {
		return n.Value
	}
	return "0"
}
