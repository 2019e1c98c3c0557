// Package models defines server-side data models persisted in the database.
package models

import (
	"strings"

	"github.com/dmitrijs2005/zeladoria/internal/common"
)

// Status is the lifecycle state shared by notes and service orders.
type Status string

const (
	StatusOpen       Status = "aberta"
	StatusInProgress Status = "em andamento"
	StatusClosed     Status = "encerrada"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []Status{StatusOpen, StatusInProgress, StatusClosed}

// ErrInvalidStatus is returned for values outside the status vocabulary.
var ErrInvalidStatus = common.Validation("Status inválido.")

// ParseStatus validates s and returns the canonical status. The legacy
// terminal names "concluida" and "concluída" map to StatusClosed.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusOpen):
		return StatusOpen, nil
	case string(StatusInProgress), "em_andamento":
		return StatusInProgress, nil
	case string(StatusClosed), "concluida", "concluída":
		return StatusClosed, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }
