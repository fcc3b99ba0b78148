package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIPKey(t *testing.T) {
	assert.Equal(t, "ip:10.0.0.1:/identify", NewIPKey("10.0.0.1", "/identify"))
	assert.Equal(t, "ip:__1:/identify", NewIPKey("::1", "/identify"), "IPv6 colons cannot split the key")
}
