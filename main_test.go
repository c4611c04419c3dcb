package main

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPrintError(t *testing.T) {
	buf := &bytes.Buffer{}

	printError(buf, errors.New("unknown flag --nope"))

	assert.Equal(t, "ERROR:  unknown flag --nope\n", buf.String())
}
