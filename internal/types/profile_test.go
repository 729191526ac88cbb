package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileBundle_Tightness(t *testing.T) {
	var nilBundle *ProfileBundle
	assert.Nil(t, nilBundle.Tightness())

	assert.Nil(t, (&ProfileBundle{}).Tightness())
	assert.Nil(t, (&ProfileBundle{Preference: &Preference{Currency: "USD"}}).Tightness())

	b := &ProfileBundle{Preference: &Preference{Tightness: ptrFloat(0.7)}}
	if assert.NotNil(t, b.Tightness()) {
		assert.InDelta(t, 0.7, *b.Tightness(), 1e-9)
	}
}
