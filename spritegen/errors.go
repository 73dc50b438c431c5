package spritegen

import "errors"

var (
	// Seed derivation was given something it can't hash (empty or not UTF-8)
	ErrInvalidInput = errors.New("spritegen: invalid input")
	// A generation parameter is outside its accepted bounds
	ErrParameterRange = errors.New("spritegen: parameter out of range")
	// The computed grid couldn't be turned into an encoded image
	ErrRender = errors.New("spritegen: render failed")
)
