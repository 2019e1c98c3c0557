// Package query builds the status and date-range filter shared by the note
// and order listings.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
)

// DateLayout is the format of the inicio/fim query parameters.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate  = common.Validation("Data inválida. Use o formato AAAA-MM-DD.")
	ErrInvalidRange = common.Validation("A data inicial é posterior à data final.")
)

// Filter is the user's request. Nil fields are unbounded.
type Filter struct {
	Status *models.Status
	From   *time.Time
	To     *time.Time
}

// Parse reads the raw status, inicio and fim parameters. Empty strings mean
// "not set".
func Parse(status, from, to string) (Filter, error) {
	var f Filter

	if strings.TrimSpace(status) != "" {
		s, err := models.ParseStatus(status)
		if err != nil {
			return Filter{}, err
		}
		f.Status = &s
	}

	var err error
	if f.From, err = parseDate(from); err != nil {
		return Filter{}, err
	}
	if f.To, err = parseDate(to); err != nil {
		return Filter{}, err
	}

	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return Filter{}, ErrInvalidRange
	}
	return f, nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &d, nil
}

// Predicate is a Filter resolved against an actor's visibility.
type Predicate struct {
	Statuses []models.Status
	From     *time.Time
	To       *time.Time
	// Empty is set when the request asks for a status the actor may not
	// see. Nothing matches an empty predicate.
	Empty bool
}

// Resolve applies v: an explicit status is kept only when allowed, no
// status falls back to the default set.
func (f Filter) Resolve(v policy.Visibility) Predicate {
	p := Predicate{From: f.From, To: f.To}

	if f.Status == nil {
		p.Statuses = append(p.Statuses, v.Default...)
	} else if v.Allows(*f.Status) {
		p.Statuses = []models.Status{*f.Status}
	}

	p.Empty = len(p.Statuses) == 0
	return p
}

// SQL renders p as a WHERE fragment for PostgreSQL. Placeholders start at
// $firstArg. Dates compare on the date part of createdCol, bounds inclusive.
func (p Predicate) SQL(statusCol, createdCol string, firstArg int) (string, []any) {
	if p.Empty {
		return "FALSE", nil
	}

	var (
		clauses []string
		args    []any
	)
	n := firstArg

	if len(p.Statuses) > 0 {
		ph := make([]string, len(p.Statuses))
		for i, s := range p.Statuses {
			ph[i] = fmt.Sprintf("$%d", n)
			args = append(args, string(s))
			n++
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", statusCol, strings.Join(ph, ", ")))
	}
	if p.From != nil {
		clauses = append(clauses, fmt.Sprintf("%s::date >= $%d::date", createdCol, n))
		args = append(args, p.From.Format(DateLayout))
		n++
	}
	if p.To != nil {
		clauses = append(clauses, fmt.Sprintf("%s::date <= $%d::date", createdCol, n))
		args = append(args, p.To.Format(DateLayout))
	}

	if len(clauses) == 0 {
		return "TRUE", nil
	}
	return strings.Join(clauses, " AND "), args
}

// Match evaluates p in memory with the same semantics as SQL.
func (p Predicate) Match(status models.Status, createdAt time.Time) bool {
	if p.Empty {
		return false
	}
	if len(p.Statuses) > 0 {
		found := false
		for _, s := range p.Statuses {
			if s == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	y, m, d := createdAt.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	if p.From != nil && day.Before(*p.From) {
		return false
	}
	if p.To != nil && day.After(*p.To) {
		return false
	}
	return true
}
