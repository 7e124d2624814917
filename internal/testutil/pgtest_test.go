package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpSection(t *testing.T) {
	src := "-- +goose Up\nCREATE TABLE t (id INT);\n\n-- +goose Down\nDROP TABLE t;\n"
	up := UpSection(src)
	assert.Contains(t, up, "CREATE TABLE t")
	assert.NotContains(t, up, "DROP TABLE")
}

func TestUpSection_NoAnnotations(t *testing.T) {
	src := "CREATE TABLE t (id INT);"
	assert.Equal(t, src, strings.TrimSpace(UpSection(src)))
}
