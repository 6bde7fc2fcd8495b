package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDropsIdentifyingKeys(t *testing.T) {
	in := Fields{"id": "x", "user_id": "u", "guild_id": "g", "bio": "hi"}

	out := in.Clean()

	assert.Equal(t, Fields{"bio": "hi"}, out)
	assert.Len(t, in, 4, "input must not be mutated")
}

func TestMergePatchWins(t *testing.T) {
	base := Fields{"bio": "old", "language": "en-US"}
	patch := Fields{"bio": "new", "guild_id": "other"}

	out := Merge(base, patch)

	assert.Equal(t, Fields{"bio": "new", "language": "en-US"}, out)
	assert.Equal(t, "old", base["bio"])
}

func TestFieldsString(t *testing.T) {
	f := Fields{"language": "ru", "count": 3}

	assert.Equal(t, "ru", f.String("language"))
	assert.Equal(t, "", f.String("count"))
	assert.Equal(t, "", f.String("missing"))
	assert.Equal(t, "", Fields(nil).String("x"))
}
