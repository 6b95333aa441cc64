// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateLeak(t *testing.T) {
	tests := []struct {
		name     string
		observed []string
		allowed  []string
		want     bool
	}{
		{"no observations", nil, []string{"1.1.1.1"}, false},
		{"exact match", []string{"1.1.1.1"}, []string{"1.1.1.1", "1.0.0.1"}, false},
		{"secondary match", []string{"1.0.0.1"}, []string{"1.1.1.1", "1.0.0.1"}, false},
		{"foreign resolver", []string{"8.8.8.8"}, []string{"1.1.1.1", "1.0.0.1"}, true},
		{"mixed observations", []string{"1.1.1.1", "8.8.8.8"}, []string{"1.1.1.1"}, true},
		{"empty allowed", []string{"1.1.1.1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateLeak(tt.observed, tt.allowed))
		})
	}
}

func TestStripPort(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"8.8.8.8:53", "8.8.8.8"},
		{"8.8.8.8", "8.8.8.8"},
		{"[::1]:53", "::1"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, stripPort(tt.input))
		})
	}
}
