package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGitURL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"https://github.com/user/repo.git", true},
		{"git@github.com:user/repo.git", true},
		{"git@gitlab.com:group/project", true},
		{"https://github.com/user/repo", false},
		{"/local/path", false},
		{".", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isGitURL(tt.input), "input %q", tt.input)
	}
}
