// Package testutil builds sessions and tool contexts for package tests.
package testutil
