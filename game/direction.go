package game

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is a move choice. The enumeration order is also the tie-break order
// used by search strategies.
type Direction int8

const (
	Left Direction = iota
	Right
	Up
	Down
)

// NumDirections is the size of the Direction enumeration.
const NumDirections = 4

// Directions lists every direction in enumeration order.
var Directions = [NumDirections]Direction{Left, Right, Up, Down}

var ErrInvalidDirection = errors.New("invalid direction")

var directionNames = [NumDirections]string{"left", "right", "up", "down"}

func (d Direction) Valid() bool {
	return d >= Left && d <= Down
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Letter is the single-character code used when sequences are persisted.
func (d Direction) Letter() byte {
	return "LRUD"[d]
}

// ParseDirection maps user or file input to a Direction. Accepted forms are the
// full names, their first letters and the arrow key names.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l", "arrowleft":
		return Left, nil
	case "right", "r", "arrowright":
		return Right, nil
	case "up", "u", "arrowup":
		return Up, nil
	case "down", "d", "arrowdown":
		return Down, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// MarshalText lets directions appear by name in JSON checkpoints.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
