package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicID(t *testing.T) {
	require.Equal(t, "onquest/trips/t1/1700000000-ab12", buildPublicID("/onquest/", "trips/t1/1700000000-ab12.jpg"))
	require.Equal(t, "trips/t1/my-photo", buildPublicID("", "trips/t1/my photo!.png"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
