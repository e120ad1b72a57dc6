package rql

import (
	"fmt"

	"recall/internal/errs"
)

// Warning is a non-fatal validation note surfaced in response.warnings
// (spec.md 4.5: "ORDER BY score ... otherwise it is ignored with a
// warning"; SELECT on an unknown field is silently ignored per spec, but
// callers may still want to see which fields were dropped).
type Warning struct {
	Code    string
	Message string
	Stage   string
	Detail  string
}

// Validated wraps a parsed Query with validation-time adjustments: the
// unknown SELECT fields stripped out, and any warnings raised along the
// way. OrderBy may be nilled out (ORDER BY score with no USING).
type Validated struct {
	Query    *Query
	Warnings []Warning
}

// Validate checks q's fields against the catalog and applies the
// validation rules from spec.md 4.5. Limit/Offset must be non-negative.
// Unknown qualified fields in FILTER or ORDER BY fail validation; unknown
// fields in SELECT are dropped with an unknown_select_field warning
// (never an error).
func Validate(q *Query) (*Validated, error) {
	v := &Validated{Query: q}

	if q.Limit != nil && *q.Limit < 0 {
		return nil, errs.Validation("LIMIT must be non-negative").WithDetail("limit", fmt.Sprintf("%d", *q.Limit))
	}
	if q.Offset != nil && *q.Offset < 0 {
		return nil, errs.Validation("OFFSET must be non-negative").WithDetail("offset", fmt.Sprintf("%d", *q.Offset))
	}

	if q.Filter != nil {
		if err := validateExpr(q.Filter); err != nil {
			return nil, err
		}
	}

	if q.OrderBy != nil {
		if q.OrderBy.Field == "score" {
			if q.Using == nil {
				v.Warnings = append(v.Warnings, Warning{
					Code:    "order_by_score_without_using",
					Message: "ORDER BY score has no effect without a USING clause; ignored",
					Stage:   "validate",
				})
				v.Query = cloneWithoutOrderBy(q)
			}
		} else if !IsKnownField(q.OrderBy.Field) {
			return nil, errs.Validation("unknown field in ORDER BY").WithDetail("field", q.OrderBy.Field)
		}
	}

	var kept []string
	for _, f := range q.Select {
		if f == "score" || IsKnownField(f) {
			kept = append(kept, f)
			continue
		}
		v.Warnings = append(v.Warnings, Warning{
			Code:    "unknown_select_field",
			Message: fmt.Sprintf("unknown field %q omitted from projection", f),
			Stage:   "validate",
			Detail:  f,
		})
	}
	if len(kept) != len(q.Select) {
		clone := *v.Query
		clone.Select = kept
		v.Query = &clone
	}

	return v, nil
}

func cloneWithoutOrderBy(q *Query) *Query {
	clone := *q
	clone.OrderBy = nil
	return &clone
}

func validateExpr(e Expr) error {
	switch n := e.(type) {
	case Or:
		if err := validateExpr(n.Left); err != nil {
			return err
		}
		return validateExpr(n.Right)
	case And:
		if err := validateExpr(n.Left); err != nil {
			return err
		}
		return validateExpr(n.Right)
	case Not:
		return validateExpr(n.Inner)
	case Predicate:
		if !IsKnownField(n.Field) {
			return errs.Validation("unknown field in FILTER").WithDetail("field", n.Field)
		}
		return nil
	default:
		return fmt.Errorf("unrecognized filter expression node %T", e)
	}
}
