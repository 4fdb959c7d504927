package announcement

import (
	"errors"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
)

var nowFunc = time.Now

// Condition is a compiled listing expression such as
// `weightKg >= 5 && !isFragile && arrivalCity == 'Dakar'`.
type Condition struct {
	expr *govaluate.EvaluableExpression
}

// CompileCondition parses a condition. An empty string yields a nil
// Condition that matches everything.
func CompileCondition(condition string) (*Condition, error) {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return nil, nil
	}
	expr, err := govaluate.NewEvaluableExpression(cond)
	if err != nil {
		return nil, err
	}
	return &Condition{expr: expr}, nil
}

// Match evaluates the condition against an announcement.
func (c *Condition) Match(a *Announcement) (bool, error) {
	if c == nil {
		return true, nil
	}
	result, err := c.expr.Evaluate(conditionParams(a))
	if err != nil {
		return false, err
	}
	v, ok := result.(bool)
	if !ok {
		return false, errors.New("condition did not evaluate to boolean")
	}
	return v, nil
}

func conditionParams(a *Announcement) map[string]interface{} {
	params := map[string]interface{}{
		"kind":          string(a.Kind),
		"status":        string(a.Status),
		"posterId":      a.PosterID,
		"departureCity": a.DepartureCity,
		"arrivalCity":   a.ArrivalCity,
		"weightKg":      a.WeightKg,
		"isFragile":     a.IsFragile,
		"isUrgent":      a.IsUrgent,
		"hasReceiver":   a.HasReceiver(),
		"daysUntil":     0.0,
		"pricePerKg":    0.0,
		"packageValue":  0.0,
		"transportMode": "",
	}
	if a.PricePerKg != nil {
		params["pricePerKg"] = *a.PricePerKg
	}
	if a.PackageValue != nil {
		params["packageValue"] = *a.PackageValue
	}
	if a.TransportMode != nil {
		params["transportMode"] = string(*a.TransportMode)
	}
	if !a.Date.IsZero() {
		params["daysUntil"] = a.Date.Sub(nowFunc()).Hours() / 24
	}
	return params
}
