package dynamo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tether/driver"
)

// buildFilterExpression translates a plain filter into a DynamoDB filter
// expression. Fields are processed in sorted order so the expression is
// deterministic for a given filter.
//
// Supported per field: literal equality, $in and $nin. Membership clauses
// also try contains() so array-valued foreign-key fields match. $expr has
// no DynamoDB rendering and is rejected.
//
// matchNone is set when the filter can match nothing (an empty $in list);
// callers short-circuit instead of scanning.
func buildFilterExpression(filter driver.Filter) (expr string, names map[string]string, values map[string]types.AttributeValue, matchNone bool, err error) {
	if len(filter) == 0 {
		return "", nil, nil, false, nil
	}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	b := newExprBuilder()
	var clauses []string
	for _, field := range fields {
		if strings.HasPrefix(field, "$") {
			return "", nil, nil, false, driver.ErrUnsupportedFilter
		}
		cond := filter[field]

		ops, isOps := operatorMap(cond)
		if !isOps {
			ph, err := b.value(cond)
			if err != nil {
				return "", nil, nil, false, err
			}
			clauses = append(clauses, fmt.Sprintf("%s = %s", b.fieldPath(field), ph))
			continue
		}

		for _, op := range sortedKeys(ops) {
			list, ok := ops[op].([]any)
			if !ok {
				return "", nil, nil, false, driver.ErrUnsupportedFilter
			}
			switch op {
			case driver.OpIn:
				if len(list) == 0 {
					return "", nil, nil, true, nil
				}
				clause, err := b.membership(field, list)
				if err != nil {
					return "", nil, nil, false, err
				}
				clauses = append(clauses, clause)
			case driver.OpNin:
				if len(list) == 0 {
					continue
				}
				clause, err := b.membership(field, list)
				if err != nil {
					return "", nil, nil, false, err
				}
				path := b.fieldPath(field)
				clauses = append(clauses, fmt.Sprintf("(attribute_not_exists(%s) OR NOT %s)", path, clause))
			default:
				return "", nil, nil, false, driver.ErrUnsupportedFilter
			}
		}
	}

	return strings.Join(clauses, " AND "), b.names, b.values, false, nil
}

type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	nField int
	nValue int
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

// fieldPath renders a dotted path as a chain of name placeholders.
func (b *exprBuilder) fieldPath(path string) string {
	segs := strings.Split(path, ".")
	parts := make([]string, len(segs))
	for i, seg := range segs {
		ph := fmt.Sprintf("#f%d_%d", b.nField, i)
		b.names[ph] = seg
		parts[i] = ph
	}
	b.nField++
	return strings.Join(parts, ".")
}

func (b *exprBuilder) value(v any) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal filter value: %w", err)
	}
	ph := fmt.Sprintf(":v%d", b.nValue)
	b.nValue++
	b.values[ph] = av
	return ph, nil
}

// membership renders "field is, or contains, one of list".
func (b *exprBuilder) membership(field string, list []any) (string, error) {
	path := b.fieldPath(field)
	phs := make([]string, 0, len(list))
	for _, v := range list {
		ph, err := b.value(v)
		if err != nil {
			return "", err
		}
		phs = append(phs, ph)
	}
	parts := []string{fmt.Sprintf("%s IN (%s)", path, strings.Join(phs, ", "))}
	for _, ph := range phs {
		parts = append(parts, fmt.Sprintf("contains(%s, %s)", path, ph))
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func operatorMap(cond any) (map[string]any, bool) {
	m, ok := cond.(map[string]any)
	if !ok {
		return nil, false
	}
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return m, true
		}
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
