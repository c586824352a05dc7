package cutting

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCapacity is returned when the stock capacity is not a positive number.
	ErrInvalidCapacity = errors.New("stock capacity must be a finite positive number")
	// ErrDuplicateDetail is returned when two details in one run share a name.
	ErrDuplicateDetail = errors.New("detail names must be unique")
	// ErrTooManyPieces is returned when a run asks for more than MaxPieces pieces.
	ErrTooManyPieces = errors.New("too many pieces requested")
	// ErrUnplaceableDetail is returned when a detail can never fit on a fresh stock unit.
	ErrUnplaceableDetail = errors.New("detail cannot be placed on any stock unit")
)

// UnplaceableDetail names a detail that no stock unit can hold.
type UnplaceableDetail struct {
	Name   string  `json:"name"`
	Length float64 `json:"length"`
}

// UnplaceableDetailError lists every detail left over because it does not fit
// on an empty stock unit. It unwraps to ErrUnplaceableDetail.
type UnplaceableDetailError struct {
	Capacity float64
	Details  []UnplaceableDetail
}

func (e *UnplaceableDetailError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, fmt.Sprintf("%s (%s)", d.Name, formatLength(d.Length)))
	}
	return fmt.Sprintf("%s: capacity %s, details %s",
		ErrUnplaceableDetail.Error(), formatLength(e.Capacity), strings.Join(parts, ", "))
}

func (e *UnplaceableDetailError) Unwrap() error {
	return ErrUnplaceableDetail
}

func formatLength(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
