package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrSignalAlreadyProcessed = errors.New("signal already processed")
	ErrOrderTerminal          = errors.New("order already in a terminal state")
	ErrNoMarketPrice          = errors.New("no market price available for symbol")
	ErrInvalidTransition      = errors.New("invalid position transition")
	ErrStrategyDisabled       = errors.New("strategy catalog entry disabled")
)
