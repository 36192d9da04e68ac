package repo

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindBool
	KindTime
	KindID
)

type FieldSpec struct {
	Column string
	Kind   FieldKind
	// Multi allows a repeated parameter to match any of its values.
	Multi bool
	// NoFilter marks array and JSON columns: selectable and sortable, but
	// not comparable to a scalar.
	NoFilter bool
}

// Schema lists the query-visible fields of a collection by their JSON name.
type Schema struct {
	Fields      map[string]FieldSpec
	DefaultSort []SortField
}

type SortField struct {
	Field string
	Desc  bool
}

type Condition struct {
	Field  string
	Op     string
	Values []any
}

// QueryOptions is the parsed form of ?field[op]=v&sort=&fields=&page=&limit=.
type QueryOptions struct {
	Conditions []Condition
	Sort       []SortField
	Fields     []string
	Page       int
	Limit      int
}

const (
	DefaultPage  = 1
	DefaultLimit = 100
	MaxLimit     = 1000
	// maxOffset keeps (page-1)*limit far from int overflow.
	maxOffset = math.MaxInt32
)

var operators = map[string]string{
	"":    "=",
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
	"ne":  "<>",
}

var reservedParams = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

// ParseQuery turns request query values into QueryOptions checked against schema.
// A repeated parameter keeps its last value unless the field allows several.
func ParseQuery(values url.Values, schema Schema) (QueryOptions, error) {
	opts := QueryOptions{Page: DefaultPage, Limit: DefaultLimit}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := values[key]
		if len(raw) == 0 {
			continue
		}
		if reservedParams[key] {
			continue
		}
		name, op, err := splitParam(key)
		if err != nil {
			return QueryOptions{}, err
		}
		spec, ok := schema.Fields[name]
		if !ok || spec.NoFilter {
			return QueryOptions{}, &InvalidQueryError{Param: key, Value: raw[len(raw)-1]}
		}
		if !spec.Multi || op != "" {
			raw = raw[len(raw)-1:]
		}
		cond := Condition{Field: name, Op: op}
		for _, v := range raw {
			for _, part := range splitMulti(v, spec.Multi && op == "") {
				parsed, err := parseValue(spec.Kind, part)
				if err != nil {
					return QueryOptions{}, &InvalidQueryError{Param: key, Value: part}
				}
				cond.Values = append(cond.Values, parsed)
			}
		}
		opts.Conditions = append(opts.Conditions, cond)
	}

	if s := lastValue(values, "sort"); s != "" {
		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			field := SortField{Field: strings.TrimPrefix(item, "-"), Desc: strings.HasPrefix(item, "-")}
			if _, ok := schema.Fields[field.Field]; !ok {
				return QueryOptions{}, &InvalidQueryError{Param: "sort", Value: item}
			}
			opts.Sort = append(opts.Sort, field)
		}
	}
	if len(opts.Sort) == 0 {
		opts.Sort = schema.DefaultSort
	}

	if f := lastValue(values, "fields"); f != "" {
		for _, item := range strings.Split(f, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if _, ok := schema.Fields[item]; !ok {
				return QueryOptions{}, &InvalidQueryError{Param: "fields", Value: item}
			}
			opts.Fields = append(opts.Fields, item)
		}
	}

	if p, err := strconv.Atoi(lastValue(values, "page")); err == nil && p > 0 {
		opts.Page = p
	}
	if l, err := strconv.Atoi(lastValue(values, "limit")); err == nil && l > 0 {
		opts.Limit = min(l, MaxLimit)
	}
	if opts.Page-1 > maxOffset/opts.Limit {
		return QueryOptions{}, &InvalidQueryError{Param: "page", Value: lastValue(values, "page")}
	}

	return opts, nil
}

// Where renders the conditions as SQL starting at placeholder $start. The
// returned clause begins with "AND" for each condition, or is empty.
func (o QueryOptions) Where(schema Schema, start int) (string, []any) {
	var clauses []string
	var args []any
	index := start
	for _, cond := range o.Conditions {
		spec := schema.Fields[cond.Field]
		column := spec.Column
		if len(cond.Values) > 1 {
			placeholders := make([]string, len(cond.Values))
			for i, v := range cond.Values {
				placeholders[i] = fmt.Sprintf("$%d", index)
				args = append(args, v)
				index++
			}
			clauses = append(clauses, fmt.Sprintf("AND %s IN (%s)", column, strings.Join(placeholders, ", ")))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("AND %s %s $%d", column, operators[cond.Op], index))
		args = append(args, cond.Values[0])
		index++
	}
	return strings.Join(clauses, "\n"), args
}

func (o QueryOptions) OrderBy(schema Schema) string {
	if len(o.Sort) == 0 {
		return ""
	}
	parts := make([]string, 0, len(o.Sort))
	for _, s := range o.Sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, schema.Fields[s.Field].Column+" "+dir)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

func (o QueryOptions) Offset() int {
	if o.Page < 1 {
		return 0
	}
	return (o.Page - 1) * o.limit()
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

func (o QueryOptions) LimitOffset() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", o.limit(), o.Offset())
}

func splitParam(key string) (string, string, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, "", nil
	}
	if !strings.HasSuffix(key, "]") {
		return "", "", &InvalidQueryError{Param: key}
	}
	name, op := key[:open], key[open+1:len(key)-1]
	if _, ok := operators[op]; !ok || op == "" {
		return "", "", &InvalidQueryError{Param: key}
	}
	return name, op, nil
}

func splitMulti(v string, multi bool) []string {
	if !multi {
		return []string{v}
	}
	return strings.Split(v, ",")
}

func parseValue(kind FieldKind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindNumber:
		return strconv.ParseFloat(raw, 64)
	case KindBool:
		return strconv.ParseBool(raw)
	case KindTime:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		return time.Parse("2006-01-02", raw)
	case KindID:
		if err := ValidateID("id", raw); err != nil {
			return nil, err
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func lastValue(values url.Values, key string) string {
	v := values[key]
	if len(v) == 0 {
		return ""
	}
	return strings.TrimSpace(v[len(v)-1])
}
