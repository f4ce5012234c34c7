package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "roadobjects.915", Subject(915))
	assert.Equal(t, "roadobjects.916", Subject(916))
}
