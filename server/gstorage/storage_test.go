package gstorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "kinfolk-prod/kinfolk.db", ObjectName("kinfolk-prod", "/var/lib/kinfolk/db/kinfolk.db"))
	assert.Equal(t, "photo.png", ObjectName("", "photo.png"))
	assert.Equal(t, "photos/FAMX/a.jpg", ObjectName("photos/FAMX", "a.jpg"))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/kinfolk/photos/a.jpg", PublicURL("kinfolk", "photos/a.jpg"))
}
