package milvusopts

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.Empty(t, NewOptions().Validate())

	o := NewOptions()
	o.Address = ""
	o.Timeout = 0
	o.NProbe = 0
	assert.Len(t, o.Validate(), 3)
}

func TestAddFlagsWithPrefix(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "ticket")

	require.NoError(t, fs.Parse([]string{"--ticket.milvus.address=milvus:19530", "--ticket.milvus.nprobe=32"}))
	assert.Equal(t, "milvus:19530", o.Address)
	assert.Equal(t, 32, o.NProbe)
}

func TestCompleteFromEnv(t *testing.T) {
	t.Setenv("MILVUS_PASSWORD", "pw")
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "pw", o.Password)
}
