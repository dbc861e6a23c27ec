// Package query turns list-endpoint query strings into MongoDB filters,
// find options and pagination metadata.
//
//	GET /products?price[gte]=50&price[lte]=100&sort=-price&fields=title,price&keyword=phone&page=2&limit=10
package query

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"shop-service/internal/apperr"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var reserved = map[string]bool{
	"page":    true,
	"sort":    true,
	"limit":   true,
	"fields":  true,
	"keyword": true,
}

var operators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

// MaxLimit caps the page size a client may ask for.
const MaxLimit int64 = 1000

var keyPattern = regexp.MustCompile(`^([A-Za-z0-9_.]+)(?:\[([A-Za-z]+)\])?$`)

// Pagination is rendered verbatim as paginationResult.
type Pagination struct {
	CurrentPage   int64 `json:"currentPage"`
	Limit         int64 `json:"limit"`
	NumberOfPages int64 `json:"numberOfPages"`
	Next          int64 `json:"next,omitempty"`
	Prev          int64 `json:"prev,omitempty"`
}

// Query is the composed result of a Builder.
type Query struct {
	Filter     bson.M
	Options    *options.FindOptions
	Pagination Pagination
}

// Builder composes the optional list steps. Every step is chainable and the
// first error sticks until Query is called.
type Builder struct {
	params     url.Values
	conds      []bson.M
	opts       *options.FindOptions
	pagination Pagination
	err        error
}

// New starts a builder over params. base narrows every result (for example
// to one user's orders) and cannot be widened by query parameters.
func New(params url.Values, base bson.M) *Builder {
	b := &Builder{params: params, opts: options.Find()}
	if len(base) > 0 {
		b.conds = append(b.conds, base)
	}
	return b
}

// Filter turns non-reserved parameters into equality or comparison
// constraints. Repeated keys match any of the given values. Comparisons take
// numbers only and cannot be mixed with an equality on the same field.
func (b *Builder) Filter() *Builder {
	if b.err != nil {
		return b
	}

	filter := bson.M{}
	equal := map[string]bool{}
	compared := map[string]bool{}
	for key, values := range b.params {
		if reserved[key] || len(values) == 0 {
			continue
		}
		if strings.Contains(key, "$") {
			b.err = apperr.Validation("Invalid filter parameter: %s", key)
			return b
		}
		m := keyPattern.FindStringSubmatch(key)
		if m == nil {
			b.err = apperr.Validation("Invalid filter parameter: %s", key)
			return b
		}
		field, op := m[1], m[2]
		if (op == "" && compared[field]) || (op != "" && equal[field]) {
			b.err = apperr.Validation("Cannot combine equality and comparison filters on %s", field)
			return b
		}

		if op == "" {
			equal[field] = true
			if len(values) == 1 {
				filter[field] = coerce(values[0])
			} else {
				in := make(bson.A, 0, len(values))
				for _, v := range values {
					in = append(in, coerce(v))
				}
				filter[field] = bson.M{"$in": in}
			}
			continue
		}

		mongoOp, ok := operators[op]
		if !ok {
			b.err = apperr.Validation("Unsupported filter operator: %s", op)
			return b
		}
		n, ok := number(values[0])
		if !ok {
			b.err = apperr.Validation("Filter %s[%s] needs a numeric value", field, op)
			return b
		}
		compared[field] = true
		ops, _ := filter[field].(bson.M)
		if ops == nil {
			ops = bson.M{}
		}
		ops[mongoOp] = n
		filter[field] = ops
	}

	if len(filter) > 0 {
		b.conds = append(b.conds, filter)
	}
	return b
}

// Search adds a case-insensitive contains match on keyword, OR-ed across
// fields.
func (b *Builder) Search(fields ...string) *Builder {
	if b.err != nil || len(fields) == 0 {
		return b
	}
	keyword := strings.TrimSpace(b.params.Get("keyword"))
	if keyword == "" {
		return b
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"}
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: pattern})
	}
	b.conds = append(b.conds, bson.M{"$or": or})
	return b
}

// Sort reads a space or comma separated field list; a leading "-" sorts
// descending. Without a sort parameter natural order is kept.
func (b *Builder) Sort() *Builder {
	if b.err != nil {
		return b
	}
	fields := splitFields(b.params.Get("sort"))
	if len(fields) == 0 {
		return b
	}

	sort := bson.D{}
	for _, f := range fields {
		dir := 1
		if strings.HasPrefix(f, "-") {
			dir = -1
			f = f[1:]
		}
		if !validField(f) {
			b.err = apperr.Validation("Invalid sort field: %s", f)
			return b
		}
		sort = append(sort, bson.E{Key: f, Value: dir})
	}
	b.opts.SetSort(sort)
	return b
}

// LimitFields projects the comma separated fields. "-field" excludes it.
// Inclusion and exclusion cannot be mixed, apart from "-_id".
func (b *Builder) LimitFields() *Builder {
	if b.err != nil {
		return b
	}
	fields := splitFields(b.params.Get("fields"))
	if len(fields) == 0 {
		return b
	}

	projection := bson.D{}
	var include, exclude bool
	for _, f := range fields {
		val := 1
		if strings.HasPrefix(f, "-") {
			val = 0
			f = f[1:]
			if f != "_id" {
				exclude = true
			}
		} else {
			include = true
		}
		if !validField(f) {
			b.err = apperr.Validation("Invalid projection field: %s", f)
			return b
		}
		projection = append(projection, bson.E{Key: f, Value: val})
	}
	if include && exclude {
		b.err = apperr.Validation("Cannot mix included and excluded fields")
		return b
	}
	b.opts.SetProjection(projection)
	return b
}

// Conditions returns the composed filter. Callers count with it before
// Paginate so page metadata reflects only matching documents.
func (b *Builder) Conditions() (bson.M, error) {
	if b.err != nil {
		return nil, b.err
	}
	switch len(b.conds) {
	case 0:
		return bson.M{}, nil
	case 1:
		return b.conds[0], nil
	default:
		and := make(bson.A, 0, len(b.conds))
		for _, c := range b.conds {
			and = append(and, c)
		}
		return bson.M{"$and": and}, nil
	}
}

// Paginate applies the page window for total matching documents. Missing,
// malformed or non-positive page and limit values fall back to 1 and
// defaultLimit. limit is capped at MaxLimit and page at the last page whose
// offset still fits an int64.
func (b *Builder) Paginate(total, defaultLimit int64) *Builder {
	if b.err != nil {
		return b
	}
	if defaultLimit <= 0 {
		defaultLimit = MaxLimit
	}
	page := positiveInt(b.params.Get("page"), 1)
	limit := positiveInt(b.params.Get("limit"), defaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if maxPage := math.MaxInt64 / limit; page > maxPage {
		page = maxPage
	}

	b.pagination = Paginate(page, limit, total)
	b.opts.SetSkip((page - 1) * limit)
	b.opts.SetLimit(limit)
	return b
}

// Query returns the composed query or the first error hit by any step.
func (b *Builder) Query() (Query, error) {
	filter, err := b.Conditions()
	if err != nil {
		return Query{}, err
	}
	return Query{Filter: filter, Options: b.opts, Pagination: b.pagination}, nil
}

// Paginate computes page metadata for total documents.
func Paginate(page, limit, total int64) Pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	p := Pagination{
		CurrentPage:   page,
		Limit:         limit,
		NumberOfPages: pages,
	}
	if page < pages {
		p.Next = page + 1
	}
	if page > 1 {
		p.Prev = page - 1
	}
	return p
}

func positiveInt(raw string, fallback int64) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func splitFields(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func validField(f string) bool {
	return f != "" && !strings.Contains(f, "$") && keyPattern.MatchString(f) && !strings.Contains(f, "[")
}

// coerce converts query string values into typed BSON values: ObjectIDs,
// numbers and booleans. Numbers with a leading zero stay strings so codes
// like barcodes keep matching.
func coerce(v string) interface{} {
	if len(v) == 24 {
		if id, err := primitive.ObjectIDFromHex(v); err == nil {
			return id
		}
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if len(v) > 1 && v[0] == '0' && v[1] != '.' {
		return v
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return v
}

// number parses a comparison operand. Leading zeros are accepted here since
// the value is compared, not matched.
func number(v string) (interface{}, bool) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f, true
	}
	return nil, false
}
