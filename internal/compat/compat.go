// Package compat verifies that the commerce API speaks a version this front
// end understands. The readiness endpoint reports the result.
package compat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrIncompatible is returned when the backend version is older than the
// configured minimum.
var ErrIncompatible = errors.New("backend version incompatible")

// VersionSource reports the backend's published API version.
type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

// Result is the outcome of one probe.
type Result struct {
	BackendVersion string `json:"backend_version"`
	MinVersion     string `json:"min_version"`
	Compatible     bool   `json:"compatible"`
}

// Checker compares the backend version against a minimum.
type Checker struct {
	source VersionSource
	min    string
}

// NewChecker validates min and returns a Checker. A blank min accepts any
// backend that publishes a version.
func NewChecker(source VersionSource, min string) (*Checker, error) {
	if source == nil {
		return nil, errors.New("version source is required")
	}
	if min != "" {
		if !semver.IsValid(normalizeVersion(min)) {
			return nil, fmt.Errorf("minimum backend version %q is not semver", min)
		}
	}
	return &Checker{source: source, min: min}, nil
}

// Check fetches the backend version and compares it to the minimum.
// Non-semver backend versions are reported as incompatible.
func (c *Checker) Check(ctx context.Context) (Result, error) {
	res := Result{MinVersion: c.min}

	v, err := c.source.Version(ctx)
	if err != nil {
		return res, fmt.Errorf("probing backend version: %w", err)
	}
	res.BackendVersion = v

	bv := normalizeVersion(v)
	if !semver.IsValid(bv) {
		return res, fmt.Errorf("%w: %q is not semver", ErrIncompatible, v)
	}
	if c.min != "" && semver.Compare(bv, normalizeVersion(c.min)) < 0 {
		return res, fmt.Errorf("%w: %s < %s", ErrIncompatible, v, c.min)
	}
	res.Compatible = true
	return res, nil
}

// normalizeVersion adds the "v" prefix semver requires.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
